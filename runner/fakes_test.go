package runner

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

var errAssertion = errors.New("assertion failed")

// fakeBrowser is a controllable browser. A test body kills it by calling
// crash; the next Start brings it back.
type fakeBrowser struct {
	startErrs  []error // Returned by successive Start calls, success once exhausted
	deadStarts int     // Successful starts that leave the browser dead
	starts     int
	stops      int
	running    bool
	info       *types.SystemInfo
	infoErr    error
}

func (b *fakeBrowser) Start(context.Context) error {
	b.starts++
	if len(b.startErrs) > 0 {
		err := b.startErrs[0]
		b.startErrs = b.startErrs[1:]
		if err != nil {
			return err
		}
	}
	if b.deadStarts > 0 {
		b.deadStarts--
		return nil
	}
	b.running = true
	return nil
}

func (b *fakeBrowser) Stop(context.Context) error {
	b.stops++
	b.running = false
	return nil
}

func (b *fakeBrowser) Alive(context.Context) bool {
	return b.running
}

func (b *fakeBrowser) Surface() types.Surface {
	return fakeSurface{}
}

func (b *fakeBrowser) SystemInfo(context.Context) (*types.SystemInfo, error) {
	return b.info, b.infoErr
}

func (b *fakeBrowser) crash() {
	b.running = false
}

type fakeSurface struct{}

func (fakeSurface) Navigate(context.Context, string) error { return nil }

func (fakeSurface) Evaluate(context.Context, string) (string, error) { return "PASS", nil }

// script returns a test body yielding the given errors in order, repeating
// the last one, and a pointer to the number of calls made.
func script(errs ...error) (types.TestFunc, *int) {
	calls := 0
	return func(context.Context, types.Surface) error {
		i := min(calls, len(errs)-1)
		calls++
		return errs[i]
	}, &calls
}

// mockBrowser is a testify mock of browser.Controller.
type mockBrowser struct {
	mock.Mock
}

func (m *mockBrowser) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBrowser) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBrowser) Alive(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockBrowser) Surface() types.Surface {
	return fakeSurface{}
}
