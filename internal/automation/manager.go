// File: internal/automation/manager.go
package automation

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/config"
)

// Manager owns the lifecycle of the single headless browser process. Every
// target's page is a tab context derived from the one allocator, so process
// shutdown tears all of them down collectively.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
}

// NewManager launches the browser process and verifies it is responsive.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launchBrowser prepares allocator options and starts the headless browser process.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Probe with a throwaway tab to confirm the browser actually starts.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the launch flags for the shared browser instance.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
	)

	if w, h := m.cfg.Viewport["width"], m.cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	// Custom arguments from the config file.
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// NewPage creates a fresh, isolated tab for one target. The tab stays alive
// until the manager shuts down; targets never get a second one.
func (m *Manager) NewPage() (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(m.allocatorCtx)

	// Run an empty task so the tab is allocated eagerly and startup failures
	// surface here instead of in the middle of the first action.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return &Page{ctx: tabCtx, cancel: cancel}, nil
}

// Shutdown terminates the browser process and with it every open tab.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.allocatorCancel == nil {
		return nil
	}
	m.logger.Info("Shutting down browser process...")
	m.allocatorCancel()

	select {
	case <-m.allocatorCtx.Done():
		m.logger.Info("Browser process terminated.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded while waiting for browser termination.", zap.Error(ctx.Err()))
		return ctx.Err()
	}
	return nil
}
