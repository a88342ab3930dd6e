// File: internal/automation/automation.go
// Description: The boundary between the admission control plane and the
// concrete browser automation. The gate and handlers only ever see Outcome
// values and the Executor interface; the chromedp details live behind them.

package automation

import (
	"context"
)

// Outcome is the uniform result shape returned by every panel action.
// Success=false is a business-rule rejection from the panel (wrong credentials,
// insufficient balance, locked account); hard failures are returned as errors.
type Outcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Page is the exclusively owned browser tab bound to a single target. It must
// only be driven while the owner holds the target's admission grant.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the chromedp tab context used to run actions on this page.
func (p *Page) Context() context.Context { return p.ctx }

// close releases the tab. It is only reachable through the Manager's
// collective Shutdown; individual targets never tear down their own page.
func (p *Page) close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Executor performs concrete actions against a target's admin panel.
type Executor interface {
	// IsLoggedIn reports whether the page still holds an authenticated panel
	// session. An error means the probe itself could not run (dead tab,
	// navigation failure) and is treated by callers as "not authenticated".
	IsLoggedIn(ctx context.Context, page *Page) (bool, error)

	// Login authenticates the page against the target panel.
	Login(ctx context.Context, page *Page, target, username, password string) (Outcome, error)

	Register(ctx context.Context, page *Page, username string) (Outcome, error)
	ChangePassword(ctx context.Context, page *Page, username, password string) (Outcome, error)
	Deposit(ctx context.Context, page *Page, username, amount string) (Outcome, error)
	Withdraw(ctx context.Context, page *Page, username, amount string) (Outcome, error)
	LockUser(ctx context.Context, page *Page, username string) (Outcome, error)
}
