package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thinkflow/internal/auth"
	"thinkflow/internal/domain"
	"thinkflow/internal/service"
	"thinkflow/internal/store/memory"
	"thinkflow/internal/syncer"
)

type stubVerifier struct {
	identities map[string]domain.ExternalIdentity
}

func (s *stubVerifier) VerifyGoogle(_ context.Context, token string) (domain.ExternalIdentity, error) {
	if id, ok := s.identities[token]; ok {
		return id, nil
	}
	return domain.ExternalIdentity{}, errors.New("invalid token")
}

func (s *stubVerifier) VerifyApple(ctx context.Context, token string) (domain.ExternalIdentity, error) {
	return s.VerifyGoogle(ctx, token)
}

type testEnv struct {
	t        *testing.T
	sync     *syncer.Layer
	sessions *memory.SessionsStore
	cookies  auth.SessionCookies
	verifier *stubVerifier
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sync := syncer.New(memory.New(), syncer.Options{})
	if err := sync.Start(context.Background()); err != nil {
		t.Fatalf("sync start: %v", err)
	}
	t.Cleanup(sync.Close)

	env := &testEnv{
		t:        t,
		sync:     sync,
		sessions: memory.NewSessionsStore(),
		cookies:  auth.NewSessionCookies([]byte("test-secret"), time.Hour, false),
		verifier: &stubVerifier{identities: map[string]domain.ExternalIdentity{}},
	}
	env.handler = NewRouter(RouterOpts{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Auth: &service.AuthService{
			Sync:        sync,
			Sessions:    env.sessions,
			Credentials: memory.NewCredentialsStore(),
			Verifier:    env.verifier,
			SessionTTL:  time.Hour,
		},
		Thoughts:     &service.ThoughtsService{Sync: sync},
		Friends:      &service.FriendsService{Sync: sync},
		Feed:         &service.FeedService{Sync: sync},
		Users:        &service.UsersService{Sync: sync},
		Stream:       sync,
		Cookies:      env.cookies,
		PingInterval: time.Second,
	})
	return env
}

// signIn creates a user and a session without going through password
// hashing.
func (e *testEnv) signIn(name string) (domain.User, *http.Cookie) {
	e.t.Helper()
	u, _, err := e.sync.ResolveUser(context.Background(),
		domain.ExternalIdentity{Provider: "test", ExternalID: name},
		domain.User{Username: name, Friends: []string{}, FriendRequests: []domain.FriendRequest{}})
	if err != nil {
		e.t.Fatalf("ResolveUser: %v", err)
	}
	sessID, err := e.sessions.CreateSession(context.Background(), u.ID, time.Now().Add(time.Hour), "", "")
	if err != nil {
		e.t.Fatalf("CreateSession: %v", err)
	}
	return u, &http.Cookie{Name: auth.SessionCookieName, Value: e.cookies.Encode(sessID)}
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) errorEnvelope {
	t.Helper()
	expectStatus(t, rr, status)
	env := decodeBody[errorEnvelope](t, rr)
	if env.Error.Code != code {
		t.Fatalf("expected error code %q, got %q", code, env.Error.Code)
	}
	return env
}
