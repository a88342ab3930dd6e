// File: internal/api/api_test.go
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/panelgate/internal/automation"
	"github.com/xkilldash9x/panelgate/internal/ledger"
	"github.com/xkilldash9x/panelgate/internal/observability"
	"github.com/xkilldash9x/panelgate/internal/session"
)

const testTarget = "https://panel.example"

// stubExecutor is a scriptable automation.Executor. All action methods share
// one outcome so tests can focus on the HTTP flow around them.
type stubExecutor struct {
	mu       sync.Mutex
	loggedIn bool
	loginOut automation.Outcome
	loginErr error

	actionOut automation.Outcome
	actionErr error

	probeCalls  int
	loginCalls  int
	actionCalls int

	// When set, the next action signals actionStarted and then blocks until
	// actionGate is closed. Used to pin a target busy mid-flight.
	actionStarted chan struct{}
	actionGate    chan struct{}
}

func (s *stubExecutor) IsLoggedIn(ctx context.Context, page *automation.Page) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++
	return s.loggedIn, nil
}

func (s *stubExecutor) Login(ctx context.Context, page *automation.Page, target, username, password string) (automation.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++
	if s.loginErr != nil {
		return automation.Outcome{}, s.loginErr
	}
	if s.loginOut.Success {
		s.loggedIn = true
	}
	return s.loginOut, nil
}

func (s *stubExecutor) action() (automation.Outcome, error) {
	s.mu.Lock()
	s.actionCalls++
	out, err := s.actionOut, s.actionErr
	started, gate := s.actionStarted, s.actionGate
	s.actionStarted, s.actionGate = nil, nil
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-gate
	}
	return out, err
}

func (s *stubExecutor) Register(ctx context.Context, page *automation.Page, username string) (automation.Outcome, error) {
	return s.action()
}

func (s *stubExecutor) ChangePassword(ctx context.Context, page *automation.Page, username, password string) (automation.Outcome, error) {
	return s.action()
}

func (s *stubExecutor) Deposit(ctx context.Context, page *automation.Page, username, amount string) (automation.Outcome, error) {
	return s.action()
}

func (s *stubExecutor) Withdraw(ctx context.Context, page *automation.Page, username, amount string) (automation.Outcome, error) {
	return s.action()
}

func (s *stubExecutor) LockUser(ctx context.Context, page *automation.Page, username string) (automation.Outcome, error) {
	return s.action()
}

func (s *stubExecutor) calls() (probes, logins, actions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCalls, s.loginCalls, s.actionCalls
}

type stubPages struct{}

func (stubPages) NewPage() (*automation.Page, error) { return &automation.Page{}, nil }

func newTestServer(t *testing.T, exec *stubExecutor) *httptest.Server {
	t.Helper()

	audit, err := observability.NewAuditLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	logger := zap.NewNop()
	gate := session.NewGate(session.NewStore(), exec, stubPages{}, logger)
	reporter := ledger.NewReporter(nil, audit.Logger(), logger)
	t.Cleanup(reporter.Wait)

	a := New(gate, exec, reporter, nil, audit, logger)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func establish(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status, _ := postJSON(t, srv, "/login",
		`{"url":"`+testTarget+`","username":"admin","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
}

func TestIndexAndStaticPages(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "server up and running")

	for _, path := range []string{"/credentials", "/details"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html", path)
	}
}

func TestGatedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{})

	routes := map[string]string{
		"/register":   `{"url":"` + testTarget + `","username":"u1"}`,
		"/changepass": `{"url":"` + testTarget + `","username":"u1","pass":"p"}`,
		"/deposit":    `{"url":"` + testTarget + `","username":"u1","amount":"10"}`,
		"/withdraw":   `{"url":"` + testTarget + `","username":"u1","amount":"10"}`,
		"/lockuser":   `{"url":"` + testTarget + `","username":"u1"}`,
	}
	for path, body := range routes {
		status, parsed := postJSON(t, srv, path, body)
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.Equal(t, session.ErrNoSession.Error(), parsed["error"], path)
	}
}

func TestLoginValidationAndOutcomes(t *testing.T) {
	exec := &stubExecutor{loginOut: automation.Outcome{Success: true, Message: "ok"}}
	srv := newTestServer(t, exec)

	status, parsed := postJSON(t, srv, "/login", `{"url":"`+testTarget+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, parsed["error"], "required")

	status, parsed = postJSON(t, srv, "/login",
		`{"url":"`+testTarget+`","username":"admin","password":"pw"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, parsed["message"], "login success")
}

func TestLoginIdempotentWhileAuthenticated(t *testing.T) {
	exec := &stubExecutor{loginOut: automation.Outcome{Success: true}}
	srv := newTestServer(t, exec)

	establish(t, srv)
	status, parsed := postJSON(t, srv, "/login",
		`{"url":"`+testTarget+`","username":"other","password":"other"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, parsed["message"], "already available")

	_, logins, _ := exec.calls()
	assert.Equal(t, 1, logins, "second login must not reach the executor")
}

func TestLoginRejectedByPanel(t *testing.T) {
	exec := &stubExecutor{loginOut: automation.Outcome{Success: false, Message: "Invalid credentials"}}
	srv := newTestServer(t, exec)

	status, parsed := postJSON(t, srv, "/login",
		`{"url":"`+testTarget+`","username":"admin","password":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", parsed["message"])
}

func TestDepositSuccess(t *testing.T) {
	exec := &stubExecutor{
		loginOut:  automation.Outcome{Success: true},
		actionOut: automation.Outcome{Success: true, Message: "Deposit completed"},
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	status, parsed := postJSON(t, srv, "/deposit",
		`{"url":"`+testTarget+`","username":"u1","amount":"25.50"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deposited successfully", parsed["message"])
}

func TestInvalidAmountSkipsExecutor(t *testing.T) {
	exec := &stubExecutor{loginOut: automation.Outcome{Success: true}}
	srv := newTestServer(t, exec)
	establish(t, srv)

	for _, amount := range []string{"-5", "abc", "0", "1.234"} {
		status, parsed := postJSON(t, srv, "/withdraw",
			`{"url":"`+testTarget+`","username":"u1","amount":"`+amount+`"}`)
		assert.Equal(t, http.StatusBadRequest, status, amount)
		assert.Equal(t, "invalid amount format", parsed["message"], amount)
	}

	_, _, actions := exec.calls()
	assert.Zero(t, actions, "rejected amounts must never reach the executor")
}

func TestConcurrentActionsOneWinner(t *testing.T) {
	exec := &stubExecutor{
		loginOut:  automation.Outcome{Success: true},
		actionOut: automation.Outcome{Success: true, Message: "done"},
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	exec.mu.Lock()
	exec.actionStarted, exec.actionGate = started, gate
	exec.mu.Unlock()

	winner := make(chan int, 1)
	go func() {
		status, _ := postJSON(t, srv, "/deposit",
			`{"url":"`+testTarget+`","username":"u1","amount":"10"}`)
		winner <- status
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first deposit never reached the executor")
	}

	// The target is busy while the first deposit sits in the executor.
	status, parsed := postJSON(t, srv, "/deposit",
		`{"url":"`+testTarget+`","username":"u2","amount":"10"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, session.ErrBusy.Error(), parsed["error"])

	close(gate)
	assert.Equal(t, http.StatusOK, <-winner)

	// The grant was released; the target admits again.
	status, _ = postJSON(t, srv, "/deposit",
		`{"url":"`+testTarget+`","username":"u1","amount":"10"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestExecutorFaultReleasesTarget(t *testing.T) {
	exec := &stubExecutor{
		loginOut:  automation.Outcome{Success: true},
		actionErr: context.DeadlineExceeded,
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	status, parsed := postJSON(t, srv, "/lockuser",
		`{"url":"`+testTarget+`","username":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", parsed["error"])

	// A fault must not leave the target stuck busy.
	exec.mu.Lock()
	exec.actionErr = nil
	exec.actionOut = automation.Outcome{Success: true}
	exec.mu.Unlock()

	status, _ = postJSON(t, srv, "/lockuser",
		`{"url":"`+testTarget+`","username":"u1"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestRepairLoginHealsExpiredSession(t *testing.T) {
	exec := &stubExecutor{
		loginOut:  automation.Outcome{Success: true},
		actionOut: automation.Outcome{Success: true},
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	// The panel dropped the session behind our back.
	exec.mu.Lock()
	exec.loggedIn = false
	exec.mu.Unlock()

	status, _ := postJSON(t, srv, "/register",
		`{"url":"`+testTarget+`","username":"newuser"}`)
	assert.Equal(t, http.StatusOK, status)

	_, logins, actions := exec.calls()
	assert.Equal(t, 2, logins, "expected a repair login before the action")
	assert.Equal(t, 1, actions)
}

func TestRepairLoginFailureRejects(t *testing.T) {
	exec := &stubExecutor{
		loginOut:  automation.Outcome{Success: true},
		actionOut: automation.Outcome{Success: true},
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	exec.mu.Lock()
	exec.loggedIn = false
	exec.loginOut = automation.Outcome{Success: false, Message: "password changed"}
	exec.mu.Unlock()

	status, parsed := postJSON(t, srv, "/register",
		`{"url":"`+testTarget+`","username":"newuser"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, session.ErrAuthExpired.Error(), parsed["error"])

	_, _, actions := exec.calls()
	assert.Zero(t, actions, "a failed repair must not run the action")
}

func TestRegisterReturnsDefaultPassword(t *testing.T) {
	exec := &stubExecutor{
		loginOut: automation.Outcome{Success: true},
		actionOut: automation.Outcome{
			Success: true,
			Message: "User created",
			Payload: map[string]any{"defaultPassword": "abcd1234"},
		},
	}
	srv := newTestServer(t, exec)
	establish(t, srv)

	status, parsed := postJSON(t, srv, "/register",
		`{"url":"`+testTarget+`","username":"fresh"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abcd1234", parsed["defaultPassword"])
}

func TestLogsEndpoint(t *testing.T) {
	dir := t.TempDir()
	audit, err := observability.NewAuditLog(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	logger := zap.NewNop()
	exec := &stubExecutor{}
	gate := session.NewGate(session.NewStore(), exec, stubPages{}, logger)
	reporter := ledger.NewReporter(nil, audit.Logger(), logger)
	t.Cleanup(reporter.Wait)

	a := New(gate, exec, reporter, nil, audit, logger)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)

	status, parsed := postJSON(t, srv, "/logs", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, parsed["error"], "Date is required")

	status, parsed = postJSON(t, srv, "/logs", `{"date":"05-2025"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, parsed["error"], "Invalid date format")

	status, parsed = postJSON(t, srv, "/logs", `{"date":"1999-01"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, parsed["error"], "not found")

	content := []byte(`{"level":"info","msg":"seeded"}` + "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "combined-2025-05.log"), content, 0o644))

	resp, err := http.Post(srv.URL+"/logs", "application/json",
		bytes.NewBufferString(`{"date":"2025-05"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
}

func TestGenerateExcelValidation(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{})

	status, parsed := postJSON(t, srv, "/generate-excel",
		`{"startDate":"05-01-2025","endDate":"2025-05-31"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, parsed["error"], "startDate")

	status, parsed = postJSON(t, srv, "/generate-excel",
		`{"startDate":"2025-05-01","endDate":"31-05-2025"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, parsed["error"], "endDate")

	// No database configured on the test server.
	status, _ = postJSON(t, srv, "/generate-excel",
		`{"startDate":"2025-05-01","endDate":"2025-05-31"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
}
