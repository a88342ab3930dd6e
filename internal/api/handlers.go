// File: internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/automation"
	"github.com/xkilldash9x/panelgate/internal/ledger"
	"github.com/xkilldash9x/panelgate/internal/observability"
	"github.com/xkilldash9x/panelgate/internal/session"
)

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "server up and running")
}

func (a *API) handleCredentials(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(addSitePage)
}

func (a *API) handleDetails(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(downloadLogsPage)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "url, username and password are required")
		return
	}

	status, msg, err := a.gate.Login(r.Context(), req.URL, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeError(w, http.StatusTooManyRequests, session.ErrBusy.Error())
			return
		}
		a.logger.Error("Login failed.", zap.String("target", req.URL), zap.Error(err))
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	switch status {
	case session.LoginRejected:
		writeMessage(w, http.StatusBadRequest, msg)
	default: // LoginOK, LoginAlready
		writeMessage(w, http.StatusOK, msg)
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	grant, ok := a.admit(w, r, req.URL)
	if !ok {
		return
	}
	defer grant.Release()

	start := time.Now()
	out, err := a.exec.Register(r.Context(), grant.Record().Page, req.Username)
	a.report(r, req.URL, ledger.KindRegister, req.Username, "", time.Since(start).Milliseconds(), out, err)

	switch {
	case err != nil:
		a.logger.Error("Register action failed.", zap.String("target", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	case !out.Success:
		writeJSON(w, http.StatusBadRequest, actionResponse{Message: "User registration not successful", Result: &out})
	default:
		writeJSON(w, http.StatusOK, registerResponse{
			Message:         out.Message,
			DefaultPassword: payloadString(out, "defaultPassword"),
		})
	}
}

func (a *API) handleChangePass(w http.ResponseWriter, r *http.Request) {
	var req changePassRequest
	if !decodeBody(w, r, &req) {
		return
	}
	grant, ok := a.admit(w, r, req.URL)
	if !ok {
		return
	}
	defer grant.Release()

	start := time.Now()
	out, err := a.exec.ChangePassword(r.Context(), grant.Record().Page, req.Username, req.Pass)
	a.report(r, req.URL, ledger.KindChangePass, req.Username, "", time.Since(start).Milliseconds(), out, err)

	switch {
	case err != nil:
		a.logger.Error("Change password action failed.", zap.String("target", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	case !out.Success:
		writeJSON(w, http.StatusBadRequest, out)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

func (a *API) handleDeposit(w http.ResponseWriter, r *http.Request) {
	a.handleFunds(w, r, ledger.KindDeposit, a.exec.Deposit,
		"deposited successfully", "deposit not successful")
}

func (a *API) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	a.handleFunds(w, r, ledger.KindWithdraw, a.exec.Withdraw,
		"Withdrawn successfully", "withdraw not successful")
}

// handleFunds is the shared flow for the amount-bearing actions. The amount
// check runs after admission but before the executor and before the timing
// window opens.
func (a *API) handleFunds(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	action func(ctx context.Context, page *automation.Page, username, amount string) (automation.Outcome, error),
	okMsg, failMsg string,
) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	grant, ok := a.admit(w, r, req.URL)
	if !ok {
		return
	}
	defer grant.Release()

	if !IsValidAmount(req.Amount) {
		writeMessage(w, http.StatusBadRequest, "invalid amount format")
		return
	}

	log := a.logger.With(
		zap.String("target", req.URL),
		zap.String("user", req.Username),
		zap.String("amount", req.Amount),
	)
	log.Info("[req] funds action", zap.String("kind", kind))

	start := time.Now()
	out, err := action(r.Context(), grant.Record().Page, req.Username, req.Amount)
	elapsed := time.Since(start).Milliseconds()
	a.report(r, req.URL, kind, req.Username, req.Amount, elapsed, out, err)

	switch {
	case err != nil:
		log.Error("[res] executor fault", zap.Int64("elapsed_ms", elapsed), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	case !out.Success:
		log.Warn("[res] action rejected", zap.Int64("elapsed_ms", elapsed), zap.String("message", out.Message))
		writeJSON(w, http.StatusBadRequest, actionResponse{Message: failMsg, Result: &out})
	default:
		log.Info("[res] action completed", zap.Int64("elapsed_ms", elapsed), zap.String("message", out.Message))
		writeJSON(w, http.StatusOK, actionResponse{Message: okMsg, Result: &out})
	}
}

func (a *API) handleLockUser(w http.ResponseWriter, r *http.Request) {
	var req lockUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	grant, ok := a.admit(w, r, req.URL)
	if !ok {
		return
	}
	defer grant.Release()

	start := time.Now()
	out, err := a.exec.LockUser(r.Context(), grant.Record().Page, req.Username)
	a.report(r, req.URL, ledger.KindLock, req.Username, "", time.Since(start).Milliseconds(), out, err)

	switch {
	case err != nil:
		a.logger.Error("Lock user action failed.", zap.String("target", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	case !out.Success:
		writeJSON(w, http.StatusBadRequest, actionResponse{Message: "User lock not successful", Result: &out})
	default:
		writeJSON(w, http.StatusOK, actionResponse{Message: "User locked successfully", Result: &out})
	}
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	var req logsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "Date is required in the request body.")
		return
	}

	path, err := a.audit.ArtifactPath(req.Date)
	switch {
	case errors.Is(err, observability.ErrBadPeriod):
		writeError(w, http.StatusBadRequest, "Invalid date format. Please use yyyy-mm.")
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "Log file not found.")
		return
	case err != nil:
		a.logger.Error("Failed to resolve log artifact.", zap.String("period", req.Date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error sending the file.")
		return
	}

	http.ServeFile(w, r, path)
}

func (a *API) handleGenerateExcel(w http.ResponseWriter, r *http.Request) {
	var req excelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate. Please use yyyy-mm-dd.")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate. Please use yyyy-mm-dd.")
		return
	}
	if a.txs == nil {
		writeError(w, http.StatusInternalServerError, "transaction store not configured")
		return
	}

	// The end date is inclusive.
	txs, err := a.txs.ListBetween(r.Context(), start, end.AddDate(0, 0, 1), r.Host)
	if err != nil {
		a.logger.Error("Failed to load transactions for report.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error generating Excel file")
		return
	}

	wb, err := ledger.Workbook(txs)
	if err != nil {
		a.logger.Error("Failed to build workbook.", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error generating Excel file")
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=log-%s-%s.xlsx", req.StartDate, req.EndDate))
	if err := wb.Write(w); err != nil {
		// Headers are gone already; all we can do is log.
		a.logger.Error("Failed to stream workbook.", zap.Error(err))
	}
}

// report dispatches a completed gated action to the outcome reporter. It
// never blocks the response.
func (a *API) report(r *http.Request, target, kind, username, amount string, elapsed int64, out automation.Outcome, err error) {
	msg := out.Message
	if err != nil {
		msg = err.Error()
	}
	a.reporter.Report(ledger.Transaction{
		Target:    target,
		Kind:      kind,
		Username:  username,
		Amount:    amount,
		ElapsedMS: elapsed,
		Message:   msg,
		Success:   err == nil && out.Success,
		Host:      r.Host,
	})
}

func payloadString(out automation.Outcome, key string) string {
	if out.Payload == nil {
		return ""
	}
	if v, ok := out.Payload[key].(string); ok {
		return v
	}
	return ""
}
