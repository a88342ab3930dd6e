// File: internal/automation/panel.go
package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/config"
)

// successKeywords classify a result banner as a successful action. Anything
// else is treated as a business-rule rejection with the banner passed through.
var successKeywords = []string{"success", "successful", "completed", "done"}

// PanelDriver is the chromedp-backed Executor. It drives the remote admin
// panel through the selectors declared in configuration, so a differently
// skinned panel only needs a config change.
type PanelDriver struct {
	logger  *zap.Logger
	cfg     config.PanelConfig
	timeout time.Duration
}

// NewPanelDriver builds the driver from panel and browser configuration.
func NewPanelDriver(logger *zap.Logger, panelCfg config.PanelConfig, browserCfg config.BrowserConfig) *PanelDriver {
	return &PanelDriver{
		logger:  logger.Named("panel_driver"),
		cfg:     panelCfg,
		timeout: browserCfg.ActionTimeout,
	}
}

// runCtx derives the execution context for one action. chromedp actions must
// run on the tab's own context chain; the request context only contributes
// its cancellation check before we start driving the page.
func (d *PanelDriver) runCtx(ctx context.Context, page *Page) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	run, cancel := context.WithTimeout(page.Context(), d.timeout)
	return run, cancel, nil
}

// IsLoggedIn probes for the logged-in marker element on the current page.
func (d *PanelDriver) IsLoggedIn(ctx context.Context, page *Page) (bool, error) {
	run, cancel, err := d.runCtx(ctx, page)
	if err != nil {
		return false, err
	}
	defer cancel()

	var present bool
	probe := fmt.Sprintf("document.querySelector(%q) !== null", d.cfg.Selectors.LoggedInProbe)
	if err := chromedp.Run(run, chromedp.Evaluate(probe, &present)); err != nil {
		return false, fmt.Errorf("login probe failed: %w", err)
	}
	return present, nil
}

// Login navigates to the target and submits the credential form.
func (d *PanelDriver) Login(ctx context.Context, page *Page, target, username, password string) (Outcome, error) {
	run, cancel, err := d.runCtx(ctx, page)
	if err != nil {
		return Outcome{}, err
	}
	defer cancel()

	sel := d.cfg.Selectors
	err = chromedp.Run(run,
		chromedp.Navigate(target),
		chromedp.WaitVisible(sel.LoginUser, chromedp.ByQuery),
		chromedp.Clear(sel.LoginUser, chromedp.ByQuery),
		chromedp.SendKeys(sel.LoginUser, username, chromedp.ByQuery),
		chromedp.Clear(sel.LoginPass, chromedp.ByQuery),
		chromedp.SendKeys(sel.LoginPass, password, chromedp.ByQuery),
		chromedp.Click(sel.LoginSubmit, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("login navigation failed: %w", err)
	}

	// The panel either lands on the dashboard or re-renders the form with an
	// error banner. The probe decides which.
	var present bool
	probe := fmt.Sprintf("document.querySelector(%q) !== null", sel.LoggedInProbe)
	if err := chromedp.Run(run, chromedp.Evaluate(probe, &present)); err != nil {
		return Outcome{}, fmt.Errorf("post-login probe failed: %w", err)
	}
	if !present {
		msg := d.readBanner(run)
		if msg == "" {
			msg = "invalid username or password"
		}
		d.logger.Warn("Panel rejected login.", zap.String("target", target), zap.String("user", username), zap.String("message", msg))
		return Outcome{Success: false, Message: msg}, nil
	}

	d.logger.Info("Panel login succeeded.", zap.String("target", target), zap.String("user", username))
	return Outcome{Success: true, Message: "logged in"}, nil
}

// formAction describes one member-management flow on the panel: the page to
// open relative to the panel root, the fields to fill, and the submit control.
type formAction struct {
	path   string
	fields map[string]string
	submit string
}

func (d *PanelDriver) Register(ctx context.Context, page *Page, username string) (Outcome, error) {
	out, err := d.submitForm(ctx, page, formAction{
		path: "/member/create",
		fields: map[string]string{
			`input[name="username"]`: username,
			`input[name="password"]`: d.cfg.DefaultPassword,
		},
		submit: `button[type="submit"]`,
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Success {
		out.Payload = map[string]any{"defaultPassword": d.cfg.DefaultPassword}
	}
	return out, nil
}

func (d *PanelDriver) ChangePassword(ctx context.Context, page *Page, username, password string) (Outcome, error) {
	return d.submitForm(ctx, page, formAction{
		path: "/member/password",
		fields: map[string]string{
			`input[name="username"]`:     username,
			`input[name="new_password"]`: password,
		},
		submit: `button[type="submit"]`,
	})
}

func (d *PanelDriver) Deposit(ctx context.Context, page *Page, username, amount string) (Outcome, error) {
	return d.submitForm(ctx, page, formAction{
		path: "/member/deposit",
		fields: map[string]string{
			`input[name="username"]`: username,
			`input[name="amount"]`:   amount,
		},
		submit: `button[type="submit"]`,
	})
}

func (d *PanelDriver) Withdraw(ctx context.Context, page *Page, username, amount string) (Outcome, error) {
	return d.submitForm(ctx, page, formAction{
		path: "/member/withdraw",
		fields: map[string]string{
			`input[name="username"]`: username,
			`input[name="amount"]`:   amount,
		},
		submit: `button[type="submit"]`,
	})
}

func (d *PanelDriver) LockUser(ctx context.Context, page *Page, username string) (Outcome, error) {
	return d.submitForm(ctx, page, formAction{
		path: "/member/lock",
		fields: map[string]string{
			`input[name="username"]`: username,
		},
		submit: `button[type="submit"]`,
	})
}

// submitForm opens the action page relative to the page's current origin,
// fills the form, submits it, and classifies the result banner.
func (d *PanelDriver) submitForm(ctx context.Context, page *Page, action formAction) (Outcome, error) {
	run, cancel, err := d.runCtx(ctx, page)
	if err != nil {
		return Outcome{}, err
	}
	defer cancel()

	var origin string
	if err := chromedp.Run(run, chromedp.Evaluate("window.location.origin", &origin)); err != nil {
		return Outcome{}, fmt.Errorf("failed to resolve panel origin: %w", err)
	}

	tasks := chromedp.Tasks{
		chromedp.Navigate(origin + action.path),
		chromedp.WaitVisible(action.submit, chromedp.ByQuery),
	}
	for selector, value := range action.fields {
		tasks = append(tasks,
			chromedp.Clear(selector, chromedp.ByQuery),
			chromedp.SendKeys(selector, value, chromedp.ByQuery),
		)
	}
	tasks = append(tasks,
		chromedp.Click(action.submit, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	if err := chromedp.Run(run, tasks); err != nil {
		return Outcome{}, fmt.Errorf("form submission on %s failed: %w", action.path, err)
	}

	msg := d.readBanner(run)
	return Outcome{Success: classifyBanner(msg), Message: msg}, nil
}

// readBanner extracts the panel's result banner text, if any is rendered.
func (d *PanelDriver) readBanner(run context.Context) string {
	var msg string
	script := fmt.Sprintf(
		"(() => { const el = document.querySelector(%q); return el ? el.textContent.trim() : ''; })()",
		d.cfg.Selectors.ResultBanner,
	)
	if err := chromedp.Run(run, chromedp.Evaluate(script, &msg)); err != nil {
		d.logger.Debug("Failed to read result banner.", zap.Error(err))
		return ""
	}
	return msg
}

// classifyBanner decides success from the banner text.
func classifyBanner(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
