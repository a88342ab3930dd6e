// File: internal/api/api.go
// Description: The HTTP facade. Gated action routes pass through the
// admission gate before they may drive the target's page; artifact and
// static routes bypass the gate entirely.

package api

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/automation"
	"github.com/xkilldash9x/panelgate/internal/ledger"
	"github.com/xkilldash9x/panelgate/internal/observability"
	"github.com/xkilldash9x/panelgate/internal/session"
)

//go:embed static/addsite.html
var addSitePage []byte

//go:embed static/downloadlogs.html
var downloadLogsPage []byte

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	gate     *session.Gate
	exec     automation.Executor
	reporter *ledger.Reporter
	txs      *ledger.Store // nil when no database is configured
	audit    *observability.AuditLog
	logger   *zap.Logger
}

// New creates the API with its collaborators injected.
func New(
	gate *session.Gate,
	exec automation.Executor,
	reporter *ledger.Reporter,
	txs *ledger.Store,
	audit *observability.AuditLog,
	logger *zap.Logger,
) *API {
	return &API{
		gate:     gate,
		exec:     exec,
		reporter: reporter,
		txs:      txs,
		audit:    audit,
		logger:   logger.Named("api"),
	}
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", a.handleIndex)
	r.Get("/credentials", a.handleCredentials)
	r.Get("/details", a.handleDetails)

	r.Post("/login", a.handleLogin)
	r.Post("/register", a.handleRegister)
	r.Post("/changepass", a.handleChangePass)
	r.Post("/deposit", a.handleDeposit)
	r.Post("/withdraw", a.handleWithdraw)
	r.Post("/lockuser", a.handleLockUser)

	r.Post("/logs", a.handleLogs)
	r.Post("/generate-excel", a.handleGenerateExcel)

	return r
}

// admit runs the admission gate for a gated route and maps rejections to
// their status codes. A busy target, a missing session, and a failed repair
// login all answer differently so callers can tell them apart.
func (a *API) admit(w http.ResponseWriter, r *http.Request, target string) (*session.Grant, bool) {
	if target == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return nil, false
	}

	grant, err := a.gate.Admit(r.Context(), target)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusNotFound, session.ErrNoSession.Error())
		case errors.Is(err, session.ErrBusy):
			writeError(w, http.StatusTooManyRequests, session.ErrBusy.Error())
		case errors.Is(err, session.ErrAuthExpired):
			writeError(w, http.StatusBadRequest, session.ErrAuthExpired.Error())
		default:
			// Repair-login faults surface as rejections the caller can act
			// on; they are not server errors.
			a.logger.Warn("Admission failed.", zap.String("target", target), zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return nil, false
	}
	return grant, true
}
