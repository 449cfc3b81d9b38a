// Package auth consumes the dashboard product's session service. The
// engine never issues sessions itself; it verifies the caller's session
// cookie against the product and checks project membership before serving
// analytics. Ingestion deliberately bypasses this package so embedded
// scripts work without credentials.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ignite/popup-engine/internal/pkg/httpretry"
)

// SessionCookie is the cookie name the dashboard sets after login.
const SessionCookie = "dashboard_session"

// Session describes an authenticated dashboard operator.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sentinel errors for session verification.
var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
)

// Verifier checks dashboard sessions and project access. Implemented over
// the product's internal session endpoint in production and by
// StaticVerifier in tests.
type Verifier interface {
	// Authenticate resolves the caller's session from the request.
	// Returns ErrNoSession or ErrSessionExpired when the caller is not
	// authenticated.
	Authenticate(r *http.Request) (*Session, error)

	// CanAccessProject reports whether the session's user is a member of
	// the project.
	CanAccessProject(ctx context.Context, s *Session, projectID string) (bool, error)
}

// HTTPVerifier validates sessions against the dashboard's internal API.
type HTTPVerifier struct {
	baseURL string
	client  httpretry.HTTPDoer
}

// NewHTTPVerifier creates a verifier that calls the dashboard's session
// service at baseURL. Lookups are retried on transient failures so a
// brief session-service blip does not log operators out of analytics.
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

func (v *HTTPVerifier) Authenticate(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		v.baseURL+"/internal/sessions/"+url.PathEscape(cookie.Value), nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusUnauthorized:
		return nil, ErrNoSession
	default:
		return nil, fmt.Errorf("session service returned %d", resp.StatusCode)
	}

	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

func (v *HTTPVerifier) CanAccessProject(ctx context.Context, s *Session, projectID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		v.baseURL+"/internal/projects/"+url.PathEscape(projectID)+"/members/"+url.PathEscape(s.UserID), nil)
	if err != nil {
		return false, fmt.Errorf("build membership request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("check project access: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound, http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("membership service returned %d", resp.StatusCode)
	}
}

// StaticVerifier holds a fixed session and project membership set. Used in
// tests and dev mode.
type StaticVerifier struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // cookie value -> session
	access   map[string]map[string]struct{} // userID -> projectIDs
}

// NewStaticVerifier creates an empty static verifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{
		sessions: make(map[string]*Session),
		access:   make(map[string]map[string]struct{}),
	}
}

// AddSession registers a session under the given cookie value.
func (v *StaticVerifier) AddSession(cookieValue string, s *Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions[cookieValue] = s
}

// GrantProject grants a user access to a project.
func (v *StaticVerifier) GrantProject(userID, projectID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.access[userID] == nil {
		v.access[userID] = make(map[string]struct{})
	}
	v.access[userID][projectID] = struct{}{}
}

func (v *StaticVerifier) Authenticate(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.sessions[cookie.Value]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (v *StaticVerifier) CanAccessProject(_ context.Context, s *Session, projectID string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.access[s.UserID][projectID]
	return ok, nil
}
