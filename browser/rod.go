package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

const defaultProbeTimeout = 5 * time.Second

// RodConfig configures a Chromium controlled over the DevTools protocol.
type RodConfig struct {
	Log          log.Logger
	Binary       BinaryManager
	Headless     bool
	ExtraArgs    []string      // Chromium switches such as --use-angle=swiftshader
	ProbeTimeout time.Duration // Bound on the liveness probe
}

// RodController launches Chromium with go-rod and exposes one page to tests.
type RodController struct {
	cfg RodConfig

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

var (
	_ Controller         = (*RodController)(nil)
	_ SystemInfoProvider = (*RodController)(nil)
)

// NewRodController creates a controller. The browser is not launched until Start.
func NewRodController(cfg RodConfig) (*RodController, error) {
	if cfg.Binary == nil {
		return nil, errors.New("binary manager is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &RodController{cfg: cfg}, nil
}

// Start launches the browser, connects to it and opens a blank page.
func (c *RodController) Start(ctx context.Context) error {
	bin, err := c.cfg.Binary.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving browser binary: %w", err)
	}

	l := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(c.cfg.Headless).
		Set("no-sandbox").
		Set("no-first-run")
	for _, arg := range c.cfg.ExtraArgs {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	c.launcher = l

	c.cfg.Log.Debug("Launching browser", "bin", bin, "headless", c.cfg.Headless, "args", c.cfg.ExtraArgs)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}
	c.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	c.page = page

	c.cfg.Log.Info("Browser started", "pid", l.PID())
	return nil
}

// Stop closes the browser and kills the process. It is safe to call on a
// browser that failed to start or was never started.
func (c *RodController) Stop(ctx context.Context) error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
	c.launcher, c.browser, c.page = nil, nil, nil
	if err != nil {
		c.cfg.Log.Debug("Browser close returned an error", "err", err)
	}
	return err
}

// Alive asks the browser for its version.
func (c *RodController) Alive(ctx context.Context) bool {
	if c.browser == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	_, err := c.browser.Context(ctx).Version()
	return err == nil
}

func (c *RodController) Surface() types.Surface {
	return &pageSurface{controller: c}
}

// SystemInfo issues SystemInfo.getInfo over the DevTools protocol.
func (c *RodController) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	if c.browser == nil {
		return nil, ErrNotStarted
	}
	res, err := proto.SystemInfoGetInfo{}.Call(c.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("querying system info: %w", err)
	}
	return systemInfoFromProto(res), nil
}

type pageSurface struct {
	controller *RodController
}

func (s *pageSurface) current(ctx context.Context) (*rod.Page, error) {
	if s.controller.page == nil {
		return nil, ErrNotStarted
	}
	return s.controller.page.Context(ctx), nil
}

func (s *pageSurface) Navigate(ctx context.Context, url string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (s *pageSurface) Evaluate(ctx context.Context, expression string) (string, error) {
	page, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	res, err := page.Eval(fmt.Sprintf("() => (%s)", expression))
	if err != nil {
		return "", err
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}
