package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thalikbussacro/acesso-clientes/storage/memory"
)

const (
	testPassword    = "Str0ng!Pass12"
	testNewPassword = "N3w&Better!Pass"
	testJWTSecret   = "test-secret-key-for-signing"
)

func newTestAPI(t *testing.T, opts ...Option) (*API, http.Handler) {
	t.Helper()
	a := New(memory.NewRepository(), []byte(testJWTSecret), opts...)
	return a, a.Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func setupWorkspace(t *testing.T, handler http.Handler) string {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/auth/setup", "", SetupRequest{Name: "acme", Password: testPassword})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[LoginResponse](t, w).Token
}

func unlock(t *testing.T, handler http.Handler, token string) {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/auth/unlock", token, UnlockRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStatusBeforeAndAfterSetup(t *testing.T) {
	_, handler := newTestAPI(t)

	w := doJSON(t, handler, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[StatusResponse](t, w)
	assert.False(t, status.WorkspaceExists)

	token := setupWorkspace(t, handler)
	w = doJSON(t, handler, http.MethodGet, "/status", token, nil)
	status = decode[StatusResponse](t, w)
	assert.True(t, status.WorkspaceExists)
	assert.Equal(t, "acme", status.WorkspaceName)
	assert.False(t, status.Unlocked, "setup must not unlock")
}

func TestSetupIsSingleton(t *testing.T) {
	_, handler := newTestAPI(t)
	setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodPost, "/auth/setup", "", SetupRequest{Name: "again", Password: testPassword})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errWorkspaceExists, decode[ErrorResponse](t, w).Error)
}

func TestSetupRejectsWeakPassword(t *testing.T) {
	_, handler := newTestAPI(t)
	w := doJSON(t, handler, http.MethodPost, "/auth/setup", "", SetupRequest{Name: "acme", Password: "abc"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[WeakPasswordResponse](t, w)
	assert.Equal(t, errWeakPassword, resp.Error)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestLogin(t *testing.T) {
	_, handler := newTestAPI(t)
	setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[LoginResponse](t, w)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "acme", resp.Workspace)

	w = doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: "Wr0ng!Password9"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errInvalidPassword, decode[ErrorResponse](t, w).Error)
}

func TestLoginBeforeSetup(t *testing.T) {
	_, handler := newTestAPI(t)
	w := doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errWorkspaceNotFound, decode[ErrorResponse](t, w).Error)
}

func TestClientRoutesRequireUnlock(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodGet, "/clients", token, nil)
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, errWorkspaceLocked, decode[ErrorResponse](t, w).Error)

	w = doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech"})
	require.Equal(t, http.StatusLocked, w.Code)
}

func TestClientLifecycle(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{
		Name:  "Initech",
		Notes: "server room code 4815",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[ClientResponse](t, w)
	require.NotEmpty(t, created.ID)

	w = doJSON(t, handler, http.MethodGet, "/clients/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ClientResponse](t, w)
	assert.Equal(t, "server room code 4815", got.Notes)

	w = doJSON(t, handler, http.MethodGet, "/clients?search=4815", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ClientListResponse](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Initech", list.Clients[0].Name)

	w = doJSON(t, handler, http.MethodPut, "/clients/"+created.ID, token, ClientRequest{Name: "Initech GmbH"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodDelete, "/clients/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/clients/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLockBlocksFurtherReads(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech", Notes: "secret"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[ClientResponse](t, w)

	w = doJSON(t, handler, http.MethodPost, "/auth/lock", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/clients/"+created.ID, token, nil)
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, errWorkspaceLocked, decode[ErrorResponse](t, w).Error)

	// Unlock restores access to the same record.
	unlock(t, handler, token)
	w = doJSON(t, handler, http.MethodGet, "/clients/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", decode[ClientResponse](t, w).Notes)
}

func TestRevealRequiresAccessGrant(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech"})
	require.Equal(t, http.StatusCreated, w.Code)
	client := decode[ClientResponse](t, w)

	w = doJSON(t, handler, http.MethodPost, "/clients/"+client.ID+"/methods", token, MethodRequest{
		MethodType: "ssh",
		MethodName: "bastion",
		Fields:     map[string]string{"password": "hunter2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	method := decode[MethodResponse](t, w)
	assert.True(t, method.HasFields)

	revealPath := fmt.Sprintf("/clients/%s/methods/%s/reveal", client.ID, method.ID)

	// Unlocked session alone is not enough.
	w = doJSON(t, handler, http.MethodPost, revealPath, token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errAccessDenied, decode[ErrorResponse](t, w).Error)

	// Wrong password earns no grant.
	w = doJSON(t, handler, http.MethodPost, "/auth/clients/"+client.ID+"/validate-access", token,
		ValidateAccessRequest{Password: "Wr0ng!Password9"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/auth/clients/"+client.ID+"/validate-access", token,
		ValidateAccessRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodPost, revealPath, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "hunter2", decode[RevealResponse](t, w).Fields["password"])
}

func TestRevealGrantExpires(t *testing.T) {
	_, handler := newTestAPI(t, WithGrantTTL(30*time.Millisecond))
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech"})
	client := decode[ClientResponse](t, w)
	w = doJSON(t, handler, http.MethodPost, "/clients/"+client.ID+"/methods", token, MethodRequest{
		MethodType: "ssh", MethodName: "bastion", Fields: map[string]string{"password": "hunter2"},
	})
	method := decode[MethodResponse](t, w)

	w = doJSON(t, handler, http.MethodPost, "/auth/clients/"+client.ID+"/validate-access", token,
		ValidateAccessRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	time.Sleep(50 * time.Millisecond)
	revealPath := fmt.Sprintf("/clients/%s/methods/%s/reveal", client.ID, method.ID)
	w = doJSON(t, handler, http.MethodPost, revealPath, token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChangePasswordFlow(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech", Notes: "keep me"})
	require.Equal(t, http.StatusCreated, w.Code)
	client := decode[ClientResponse](t, w)

	w = doJSON(t, handler, http.MethodPost, "/auth/change-password", token, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     testNewPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old password no longer logs in; new one does, and data survived.
	w = doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: testNewPassword})
	require.Equal(t, http.StatusOK, w.Code)
	newToken := decode[LoginResponse](t, w).Token
	w = doJSON(t, handler, http.MethodPost, "/auth/unlock", newToken, UnlockRequest{Password: testNewPassword})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/clients/"+client.ID, newToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "keep me", decode[ClientResponse](t, w).Notes)
}

func TestChangePasswordLocksOtherSessions(t *testing.T) {
	_, handler := newTestAPI(t)
	tokenA := setupWorkspace(t, handler)
	unlock(t, handler, tokenA)

	w := doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	tokenB := decode[LoginResponse](t, w).Token
	unlock(t, handler, tokenB)

	w = doJSON(t, handler, http.MethodPost, "/clients", tokenA, ClientRequest{Name: "Initech", Notes: "keep me"})
	require.Equal(t, http.StatusCreated, w.Code)
	client := decode[ClientResponse](t, w)

	w = doJSON(t, handler, http.MethodPost, "/auth/change-password", tokenA, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     testNewPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Session B held the retired key; it must come back locked, not serve
	// integrity errors for re-encrypted records.
	w = doJSON(t, handler, http.MethodGet, "/clients/"+client.ID, tokenB, nil)
	require.Equal(t, http.StatusLocked, w.Code, w.Body.String())
	assert.Equal(t, errWorkspaceLocked, decode[ErrorResponse](t, w).Error)

	// Re-unlocking with the new password restores B's access.
	w = doJSON(t, handler, http.MethodPost, "/auth/unlock", tokenB, UnlockRequest{Password: testNewPassword})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, handler, http.MethodGet, "/clients/"+client.ID, tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "keep me", decode[ClientResponse](t, w).Notes)

	// The rotating session kept its access throughout.
	w = doJSON(t, handler, http.MethodGet, "/clients/"+client.ID, tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAbsoluteExpiry(t *testing.T) {
	a, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)

	claims, err := a.tokens.verify(token)
	require.NoError(t, err)

	// Same secret and session, much shorter lifetime.
	short := newTokenIssuer([]byte(testJWTSecret), time.Millisecond)
	expired, _, err := short.issue(claims.SessionID, claims.WorkspaceID, claims.Fingerprint)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// The session is still idle-fresh; only the token has hit its absolute
	// expiry.
	w := doJSON(t, handler, http.MethodPost, "/auth/lock", expired, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errSessionExpired, decode[ErrorResponse](t, w).Error)

	w = doJSON(t, handler, http.MethodPost, "/auth/lock", token, nil)
	require.Equal(t, http.StatusOK, w.Code, "original token must still work")
}

func TestSessionInfo(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodGet, "/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[SessionResponse](t, w)
	assert.NotEmpty(t, info.WorkspaceID)
	assert.False(t, info.Unlocked)
	assert.False(t, info.LastActivity.IsZero())

	unlock(t, handler, token)
	w = doJSON(t, handler, http.MethodGet, "/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SessionResponse](t, w).Unlocked)
}

func TestSweepReportsReapedCount(t *testing.T) {
	sr := newSessionRegistry(NewMemorySessionStore(), memory.NewRepository(), 10*time.Millisecond)
	s1, err := sr.create("ws", "fp")
	require.NoError(t, err)
	_, err = sr.create("ws", "fp")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, sr.sweep())
	assert.Equal(t, 0, sr.sweep())

	_, err = sr.store.Get(s1.SessionID)
	assert.ErrorIs(t, err, errSessionMissing)
}

func TestLogoutDestroysSession(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/auth/lock", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errSessionNotFound, decode[ErrorResponse](t, w).Error)
}

func TestSessionIdleTimeout(t *testing.T) {
	_, handler := newTestAPI(t, WithIdleTimeout(30*time.Millisecond))
	token := setupWorkspace(t, handler)

	time.Sleep(50 * time.Millisecond)
	w := doJSON(t, handler, http.MethodPost, "/auth/lock", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errSessionExpired, decode[ErrorResponse](t, w).Error)
}

func TestMissingOrGarbageToken(t *testing.T) {
	_, handler := newTestAPI(t)
	setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodPost, "/auth/lock", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errUnauthorized, decode[ErrorResponse](t, w).Error)

	w = doJSON(t, handler, http.MethodPost, "/auth/lock", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errSessionExpired, decode[ErrorResponse](t, w).Error)
}

func TestLoginRateLimiting(t *testing.T) {
	_, handler := newTestAPI(t)
	setupWorkspace(t, handler)

	var last *httptest.ResponseRecorder
	for i := 0; i < ipMaxFailures+1; i++ {
		last = doJSON(t, handler, http.MethodPost, "/auth/login", "", LoginRequest{Password: "Wr0ng!Password9"})
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, errRateLimited, decode[ErrorResponse](t, last).Error)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestPersistentSessionsComeBackLocked(t *testing.T) {
	repo := memory.NewRepository()
	store := NewPersistentSessionStore(repo)

	a1 := New(repo, []byte(testJWTSecret), WithSessionStore(store))
	h1 := a1.Router()
	token := setupWorkspace(t, h1)
	unlock(t, h1, token)

	w := doJSON(t, h1, http.MethodGet, "/status", token, nil)
	require.True(t, decode[StatusResponse](t, w).Unlocked)

	// Same repo and secret, fresh process: the session survives, the key
	// does not.
	a2 := New(repo, []byte(testJWTSecret), WithSessionStore(NewPersistentSessionStore(repo)))
	h2 := a2.Router()

	w = doJSON(t, h2, http.MethodGet, "/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[StatusResponse](t, w)
	assert.True(t, status.WorkspaceExists)
	assert.False(t, status.Unlocked, "restart must come back locked")

	w = doJSON(t, h2, http.MethodGet, "/clients", token, nil)
	require.Equal(t, http.StatusLocked, w.Code)
}

func TestMethodTypes(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)

	w := doJSON(t, handler, http.MethodPut, "/method-types", token, MethodTypeRequest{
		MethodType: "ssh",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/method-types", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuditTrail(t *testing.T) {
	_, handler := newTestAPI(t)
	token := setupWorkspace(t, handler)
	unlock(t, handler, token)

	w := doJSON(t, handler, http.MethodPost, "/clients", token, ClientRequest{Name: "Initech"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/audit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AuditListResponse](t, w)
	require.NotEmpty(t, resp.Entries)

	actions := make(map[string]bool)
	for _, e := range resp.Entries {
		actions[e.Action] = true
	}
	assert.True(t, actions["WORKSPACE_CREATED"])
	assert.True(t, actions["UNLOCK"])
	assert.True(t, actions["CLIENT_CREATED"])
}
