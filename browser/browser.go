// Package browser controls the browser under test.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

var (
	// ErrCrashed marks an attempt that found the browser dead.
	ErrCrashed = errors.New("browser crashed")
	// ErrNotStarted is returned when the browser is used before Start.
	ErrNotStarted = errors.New("browser not started")
)

// Controller starts, stops and probes the browser process. Implementations
// are driven by one goroutine at a time.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Alive reports whether the started browser still answers. A false
	// result after Start succeeded means the browser crashed.
	Alive(ctx context.Context) bool
	// Surface returns the page that test bodies drive.
	Surface() types.Surface
}

// SystemInfoProvider queries the running browser for GPU and system details.
type SystemInfoProvider interface {
	SystemInfo(ctx context.Context) (*types.SystemInfo, error)
}

// BinaryManager resolves the browser executable to launch. It is owned by
// the caller and handed to the controller explicitly.
type BinaryManager interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticBinary is an executable path given on the command line.
type StaticBinary string

func (b StaticBinary) Resolve(context.Context) (string, error) {
	path := string(b)
	if path == "" {
		return "", errors.New("no browser binary configured")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("browser binary %s: %w", path, err)
	}
	return path, nil
}

// SystemBinary finds an installed Chrome or Chromium, falling back to
// downloading the pinned revision when none is installed and Download is set.
type SystemBinary struct {
	Download bool
}

func (b SystemBinary) Resolve(ctx context.Context) (string, error) {
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	if !b.Download {
		return "", errors.New("no installed browser found")
	}
	managed := launcher.NewBrowser()
	managed.Context = ctx
	path, err := managed.Get()
	if err != nil {
		return "", fmt.Errorf("downloading browser: %w", err)
	}
	return path, nil
}

// NewBinaryManager picks the binary source for a configured path.
func NewBinaryManager(path string, download bool) BinaryManager {
	if path != "" {
		return StaticBinary(path)
	}
	return SystemBinary{Download: download}
}
