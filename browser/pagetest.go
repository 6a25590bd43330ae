package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// DefaultPollInterval is how often a page test re-evaluates its result expression.
const DefaultPollInterval = 100 * time.Millisecond

// Values a result expression reports once the page has finished.
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
	ResultSkip = "SKIP"
)

// PageTest returns a test body that loads url and polls expression until it
// yields a result. An empty string or null means the page is still running.
// PASS and SKIP are taken literally; FAIL or any other value fails the test
// with that value as the diagnostic.
func PageTest(url, expression string, poll time.Duration) types.TestFunc {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return func(ctx context.Context, surface types.Surface) error {
		if err := surface.Navigate(ctx, url); err != nil {
			return err
		}

		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			result, err := surface.Evaluate(ctx, expression)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("evaluating %q: %w", expression, err)
			}

			switch result = strings.TrimSpace(result); {
			case result == "":
			case strings.EqualFold(result, ResultPass):
				return nil
			case strings.EqualFold(result, ResultSkip):
				return types.ErrSkip
			case strings.EqualFold(result, ResultFail):
				return errors.New("page reported failure")
			default:
				return fmt.Errorf("page reported: %s", result)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}
