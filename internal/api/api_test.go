package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"opsboard/internal/core"
	"opsboard/internal/data"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

const testKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *httptest.Server
	store  *data.Store
	auth   *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the Handler before its routes are built.
func newTestEnvWith(t *testing.T, configure func(h *Handler)) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := data.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "opsboard.db"), 0)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	auth := service.NewAuthService(data.NewAccountRepo(store), service.NewCredentialManager(bcrypt.MinCost))
	incidents := service.NewIncidentService(data.NewIncidentRepo(store))
	datasets := service.NewDatasetService(data.NewDatasetRepo(store))
	tickets := service.NewTicketService(data.NewTicketRepo(store))

	loginLimiter := NewRateLimiter(6000, 100)
	apiLimiter := NewRateLimiter(6000, 100)

	h := NewHandler(Services{
		Auth:      auth,
		Incidents: incidents,
		Datasets:  datasets,
		Tickets:   tickets,
		Overview:  service.NewOverviewService(incidents, datasets, tickets),
	}, session.NewManager(testKey, session.Options{}), store, loginLimiter, apiLimiter)
	if configure != nil {
		configure(h)
	}

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		srv.Close()
		h.loginLimiter.Close()
		h.apiLimiter.Close()
		_ = store.Close()
	})
	return &testEnv{server: srv, store: store, auth: auth}
}

// client returns an HTTP client with its own cookie jar.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *Error          `json:"error"`
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

// signIn creates an account with role and logs c in as it.
func (e *testEnv) signIn(t *testing.T, c *http.Client, username string, role core.Role) {
	t.Helper()
	_, err := e.auth.Register(context.Background(), username, "GoodPass1", role)
	require.NoError(t, err)

	status, _ := e.do(t, c, http.MethodPost, "/auth/login", credentialsRequest{Username: username, Password: "GoodPass1"})
	require.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.do(t, c, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body.Data))

	resp, err := c.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.do(t, c, http.MethodPost, "/auth/register", credentialsRequest{Username: "alice", Password: "GoodPass1"})
	require.Equal(t, http.StatusCreated, status)
	var acc map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &acc))
	assert.Equal(t, "alice", acc["username"])
	assert.Equal(t, "user", acc["role"])
	assert.NotContains(t, acc, "password_hash")

	status, body = env.do(t, c, http.MethodPost, "/auth/register", credentialsRequest{Username: "alice", Password: "GoodPass1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username already exists", body.Error.Message)

	status, body = env.do(t, c, http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: "GoodPass1"})
	require.Equal(t, http.StatusOK, status)
	var s session.Session
	require.NoError(t, json.Unmarshal(body.Data, &s))
	assert.True(t, s.Authenticated)
	assert.Equal(t, "alice", s.Username)
	require.NotNil(t, s.AccountID)

	status, body = env.do(t, c, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &s))
	assert.True(t, s.Authenticated)

	status, _ = env.do(t, c, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, c, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, status)
	s = session.Session{}
	require.NoError(t, json.Unmarshal(body.Data, &s))
	assert.False(t, s.Authenticated)
	assert.Nil(t, s.AccountID)
	assert.Empty(t, s.Username)
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.do(t, c, http.MethodPost, "/auth/register", credentialsRequest{Username: "al", Password: "GoodPass1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeValidationFailed, body.Error.Code)

	status, body = env.do(t, c, http.MethodPost, "/auth/register", credentialsRequest{Username: "alice", Password: "ALLUPPER1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeWeakPassword, body.Error.Code)
	assert.Equal(t, "Password must contain at least one lowercase letter", body.Error.Message)

	status, body = env.do(t, c, http.MethodPost, "/auth/register", map[string]string{"username": "alice", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeBadRequest, body.Error.Code)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.do(t, c, http.MethodPost, "/auth/login", credentialsRequest{Username: "ghost", Password: "anything"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body.Error.Message)

	_, err := env.auth.Register(context.Background(), "alice", "GoodPass1", "")
	require.NoError(t, err)

	status, body = env.do(t, c, http.MethodPost, "/auth/login", credentialsRequest{Username: "alice", Password: "WrongPass1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Incorrect password", body.Error.Message)
}

func TestSetupOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.do(t, c, http.MethodPost, "/auth/setup", credentialsRequest{Username: "root", Password: "GoodPass1"})
	require.Equal(t, http.StatusCreated, status)
	var acc map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &acc))
	assert.Equal(t, "admin", acc["role"])

	status, _ = env.do(t, c, http.MethodPost, "/auth/setup", credentialsRequest{Username: "root2", Password: "GoodPass1"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/api/incidents", "/api/datasets", "/api/tickets", "/api/overview"} {
		status, body := env.do(t, c, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, ErrCodeUnauthorized, body.Error.Code, path)
	}
}

func TestSessionForDeletedAccountIsRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signIn(t, c, "temp", core.RoleUser)

	_, err := env.store.Exec(context.Background(), `DELETE FROM users WHERE username = {u}`, core.Params{"u": "temp"})
	require.NoError(t, err)

	status, _ := env.do(t, c, http.MethodGet, "/api/incidents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIncidentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signIn(t, c, "alice", core.RoleUser)

	status, body := env.do(t, c, http.MethodPost, "/api/incidents", createIncidentRequest{
		Category: "Phishing", Severity: core.LevelHigh, Description: "Fake invoice",
	})
	require.Equal(t, http.StatusCreated, status)
	var inc incidentView
	require.NoError(t, json.Unmarshal(body.Data, &inc))
	assert.Equal(t, int64(1001), inc.ID)
	assert.Equal(t, 3, inc.SeverityLevel)
	assert.Equal(t, core.StatusOpen, inc.Status)
	require.NotNil(t, inc.ReportedBy)
	assert.Equal(t, "alice", *inc.ReportedBy)

	status, body = env.do(t, c, http.MethodPost, "/api/incidents", createIncidentRequest{Category: "Malware", Severity: "Severe"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeValidationFailed, body.Error.Code)

	status, _ = env.do(t, c, http.MethodPatch, "/api/incidents/1001", statusRequest{Status: core.StatusResolved})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, c, http.MethodPatch, "/api/incidents/9999", statusRequest{Status: core.StatusResolved})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, c, http.MethodGet, "/api/incidents?status=Resolved", nil)
	require.Equal(t, http.StatusOK, status)
	var list []core.SecurityIncident
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Len(t, list, 1)

	status, body = env.do(t, c, http.MethodGet, "/api/incidents/stats", nil)
	require.Equal(t, http.StatusOK, status)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.InDelta(t, 1, stats["total"], 0.001)
	assert.Contains(t, stats, "high_severity_by_status")

	status, _ = env.do(t, c, http.MethodGet, "/api/incidents/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// plain users may not delete
	status, _ = env.do(t, c, http.MethodDelete, "/api/incidents/1001", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDeleteRequiresAnalyst(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signIn(t, c, "ana", core.RoleAnalyst)

	status, body := env.do(t, c, http.MethodPost, "/api/datasets", createDatasetRequest{Name: "alerts.csv", RowCount: 10, ColumnCount: 3})
	require.Equal(t, http.StatusCreated, status)
	var ds map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &ds))
	assert.Equal(t, "ana", ds["uploaded_by"])
	assert.Equal(t, "2.9 KiB", ds["size"])

	status, _ = env.do(t, c, http.MethodDelete, "/api/datasets/1", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, c, http.MethodDelete, "/api/datasets/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTicketUpdate(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signIn(t, c, "bob", core.RoleUser)

	status, body := env.do(t, c, http.MethodPost, "/api/tickets", createTicketRequest{Priority: core.LevelMedium, Description: "Laptop slow"})
	require.Equal(t, http.StatusCreated, status)
	var tk ticketView
	require.NoError(t, json.Unmarshal(body.Data, &tk))
	assert.Equal(t, int64(2001), tk.ID)
	assert.Equal(t, 2, tk.PriorityLevel)
	assert.Nil(t, tk.AssignedTo)

	inProgress := core.StatusInProgress
	carol := "carol"
	status, _ = env.do(t, c, http.MethodPatch, "/api/tickets/2001", updateTicketRequest{Status: &inProgress, AssignedTo: &carol})
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(t, c, http.MethodGet, "/api/tickets?assigned_to=carol", nil)
	require.Equal(t, http.StatusOK, status)
	var list []ticketView
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, core.StatusInProgress, list[0].Status)
	assert.Equal(t, 2, list[0].PriorityLevel)

	// Same status again is still a match, not a missing ticket.
	status, _ = env.do(t, c, http.MethodPatch, "/api/tickets/2001", updateTicketRequest{Status: &inProgress})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, c, http.MethodPatch, "/api/tickets/2001", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, c, http.MethodPost, "/api/tickets/2001/close", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = env.do(t, c, http.MethodGet, "/api/overview", nil)
	require.Equal(t, http.StatusOK, status)
	var overview core.Overview
	require.NoError(t, json.Unmarshal(body.Data, &overview))
	assert.Equal(t, int64(1), overview.Tickets.Total)
	assert.Equal(t, int64(1), overview.Tickets.ByStatus["Closed"])
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signIn(t, c, "alice", core.RoleUser)

	status, _ := env.do(t, c, http.MethodPost, "/auth/password", passwordRequest{CurrentPassword: "nope", NewPassword: "NewPass22"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, c, http.MethodPost, "/auth/password", passwordRequest{CurrentPassword: "GoodPass1", NewPassword: "NewPass22"})
	assert.Equal(t, http.StatusNoContent, status)

	_, err := env.auth.Login(context.Background(), "alice", "NewPass22")
	require.NoError(t, err)
}

func (e *testEnv) loginFrom(t *testing.T, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/auth/login", strings.NewReader(`{"username":"ghost","password":"GoodPass1"}`))
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginLimiter_ForwardedForNotTrustedByDefault(t *testing.T) {
	env := newTestEnvWith(t, func(h *Handler) {
		h.loginLimiter.Close()
		h.loginLimiter = NewRateLimiter(5, 3)
	})

	limited := 0
	for i := range 10 {
		if env.loginFrom(t, fmt.Sprintf("10.0.0.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 7, limited)
}

func TestLoginLimiter_TrustProxy(t *testing.T) {
	env := newTestEnvWith(t, func(h *Handler) {
		h.TrustProxy = true
		h.loginLimiter.Close()
		h.loginLimiter = NewRateLimiter(5, 3)
	})

	for i := range 5 {
		assert.Equal(t, http.StatusNotFound, env.loginFrom(t, fmt.Sprintf("10.0.0.%d", i)))
	}
	for range 3 {
		env.loginFrom(t, "10.0.1.1")
	}
	assert.Equal(t, http.StatusTooManyRequests, env.loginFrom(t, "10.0.1.1"))
}
