package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessionService emulates the dashboard's internal session and
// membership endpoints.
func fakeSessionService(t *testing.T, sessions map[string]Session, members map[string]bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/sessions/", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Path[len("/internal/sessions/"):]
		s, ok := sessions[token]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(s)
	})
	mux.HandleFunc("/internal/projects/", func(w http.ResponseWriter, r *http.Request) {
		if members[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest("GET", "/api/activities/act-1/metrics", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: value})
	}
	return req
}

func TestHTTPVerifier_Authenticate(t *testing.T) {
	srv := fakeSessionService(t, map[string]Session{
		"valid-token": {UserID: "user-1", Email: "op@example.com"},
	}, nil)
	v := NewHTTPVerifier(srv.URL, time.Second)

	s, err := v.Authenticate(requestWithCookie("valid-token"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "op@example.com", s.Email)
}

func TestHTTPVerifier_AuthenticateFailures(t *testing.T) {
	srv := fakeSessionService(t, map[string]Session{
		"expired-token": {UserID: "user-1", ExpiresAt: time.Now().Add(-time.Hour)},
	}, nil)
	v := NewHTTPVerifier(srv.URL, time.Second)

	_, err := v.Authenticate(requestWithCookie(""))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = v.Authenticate(requestWithCookie("unknown-token"))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = v.Authenticate(requestWithCookie("expired-token"))
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHTTPVerifier_CanAccessProject(t *testing.T) {
	srv := fakeSessionService(t, nil, map[string]bool{
		"/internal/projects/proj-1/members/user-1": true,
	})
	v := NewHTTPVerifier(srv.URL, time.Second)
	s := &Session{UserID: "user-1"}

	ok, err := v.CanAccessProject(context.Background(), s, "proj-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.CanAccessProject(context.Background(), s, "proj-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPVerifier_RetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Session{UserID: "user-1"})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second)
	s, err := v.Authenticate(requestWithCookie("token"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, 2, calls)
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier()
	v.AddSession("cookie-1", &Session{UserID: "user-1"})
	v.GrantProject("user-1", "proj-1")

	s, err := v.Authenticate(requestWithCookie("cookie-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)

	_, err = v.Authenticate(requestWithCookie("other"))
	assert.ErrorIs(t, err, ErrNoSession)

	ok, err := v.CanAccessProject(context.Background(), s, "proj-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.CanAccessProject(context.Background(), s, "proj-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticVerifier_ExpiredSession(t *testing.T) {
	v := NewStaticVerifier()
	v.AddSession("old", &Session{UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := v.Authenticate(requestWithCookie("old"))
	assert.ErrorIs(t, err, ErrSessionExpired)
}
