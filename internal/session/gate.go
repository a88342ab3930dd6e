// File: internal/session/gate.go
// Description: The admission gate. Every action request against a target
// passes through here; the gate owns the check-then-set admission decision,
// the repair-login path, and the exactly-once busy release.

package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/automation"
)

// Authenticator is the slice of the automation executor the gate needs to
// verify and repair sessions.
type Authenticator interface {
	IsLoggedIn(ctx context.Context, page *automation.Page) (bool, error)
	Login(ctx context.Context, page *automation.Page, target, username, password string) (automation.Outcome, error)
}

// PageFactory hands out fresh browser pages for newly established sessions.
type PageFactory interface {
	NewPage() (*automation.Page, error)
}

// Gate serializes automation actions per target. It is injected with its
// store so tests can run isolated gates side by side.
type Gate struct {
	mu     sync.Mutex
	store  *Store
	auth   Authenticator
	pages  PageFactory
	logger *zap.Logger
}

// NewGate wires the gate to its collaborators.
func NewGate(store *Store, auth Authenticator, pages PageFactory, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		auth:   auth,
		pages:  pages,
		logger: logger.Named("gate"),
	}
}

// StateOf returns the target's current admission state.
func (g *Gate) StateOf(target string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked(target)
}

func (g *Gate) stateLocked(target string) State {
	rec, ok := g.store.Get(target)
	switch {
	case !ok:
		return NoSession
	case rec.busy:
		return Busy
	default:
		return Idle
	}
}

// Grant is the release handle returned by a successful admission. Release is
// sync.Once-backed, so every exit path may call it and the busy flag still
// clears exactly once.
type Grant struct {
	gate   *Gate
	target string
	rec    *Record
	once   sync.Once
}

// Record exposes the session record the grant protects.
func (gr *Grant) Record() *Record { return gr.rec }

// Target returns the target URL the grant was issued for.
func (gr *Grant) Target() string { return gr.target }

// Release returns the target to Idle. Safe to call more than once.
func (gr *Grant) Release() {
	gr.once.Do(func() {
		gr.gate.mu.Lock()
		gr.rec.busy = false
		gr.gate.mu.Unlock()
	})
}

// Acquire performs the atomic check-then-set admission decision for a gated
// request. No suspension point exists between reading and setting the busy
// flag; both happen under one mutex hold.
func (g *Gate) Acquire(target string) (*Grant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := Next(g.stateLocked(target), EventAcquire); err != nil {
		return nil, err
	}

	rec, _ := g.store.Get(target)
	rec.busy = true
	return &Grant{gate: g, target: target, rec: rec}, nil
}

// Admit acquires exclusion for a gated request and guarantees the session is
// authenticated before the caller may drive the page. The repair login runs
// while the grant is held, so no other request can interleave with it.
func (g *Gate) Admit(ctx context.Context, target string) (*Grant, error) {
	grant, err := g.Acquire(target)
	if err != nil {
		return nil, err
	}

	rec := grant.Record()
	ok, probeErr := g.auth.IsLoggedIn(ctx, rec.Page)
	if probeErr != nil {
		// A dead tab reads as unauthenticated so the repair path can heal it.
		g.logger.Warn("Authentication probe failed; treating session as expired.",
			zap.String("target", target), zap.Error(probeErr))
		ok = false
	}
	if ok {
		return grant, nil
	}

	out, err := g.auth.Login(ctx, rec.Page, target, rec.Username, rec.Password)
	if err != nil {
		grant.Release()
		return nil, fmt.Errorf("repair login failed: %w", err)
	}
	if !out.Success {
		grant.Release()
		return nil, ErrAuthExpired
	}

	g.logger.Info("Repaired expired session.", zap.String("target", target))
	return grant, nil
}

// LoginStatus classifies the outcome of an establish-session request.
type LoginStatus int

const (
	// LoginOK means a fresh authentication succeeded.
	LoginOK LoginStatus = iota
	// LoginAlready means the session was still authenticated; nothing ran.
	LoginAlready
	// LoginRejected means the panel refused the supplied credentials.
	LoginRejected
)

// Login establishes or refreshes the session for a target. The whole flow,
// including the lazily created page and the authentication attempt, runs under
// the target's busy flag. The returned status is only meaningful when err is
// nil.
func (g *Gate) Login(ctx context.Context, target, username, password string) (LoginStatus, string, error) {
	g.mu.Lock()
	state := g.stateLocked(target)
	if _, err := Next(state, EventEstablish); err != nil {
		g.mu.Unlock()
		return LoginRejected, "", err
	}
	created := state == NoSession
	rec := g.store.Upsert(target, Patch{})
	rec.busy = true
	g.mu.Unlock()

	grant := &Grant{gate: g, target: target, rec: rec}
	defer grant.Release()

	// An authenticated session short-circuits: no navigation, no credential
	// overwrite, and the executor's login path never runs.
	if !created && rec.Page != nil {
		ok, probeErr := g.auth.IsLoggedIn(ctx, rec.Page)
		if probeErr != nil {
			g.logger.Warn("Authentication probe failed during login; re-authenticating.",
				zap.String("target", target), zap.Error(probeErr))
			ok = false
		}
		if ok {
			return LoginAlready, fmt.Sprintf("login already available for url: %s", target), nil
		}
	}

	if rec.Page == nil {
		page, err := g.pages.NewPage()
		if err != nil {
			if created {
				// Roll back the shell record: a session never existed here.
				g.store.remove(target)
			}
			return LoginRejected, "", fmt.Errorf("failed to acquire browser page: %w", err)
		}
		g.store.Upsert(target, Patch{Page: page})
	}
	g.store.Upsert(target, Patch{Username: &username, Password: &password})

	out, err := g.auth.Login(ctx, rec.Page, target, username, password)
	if err != nil {
		return LoginRejected, "", err
	}
	if !out.Success {
		return LoginRejected, out.Message, nil
	}
	return LoginOK, fmt.Sprintf("login success to url %s", target), nil
}
