package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/store/memory"
)

type stubVerifier struct {
	googleFunc func(context.Context, string) (domain.ExternalIdentity, error)
	appleFunc  func(context.Context, string) (domain.ExternalIdentity, error)
}

func (s *stubVerifier) VerifyGoogle(ctx context.Context, token string) (domain.ExternalIdentity, error) {
	if s.googleFunc != nil {
		return s.googleFunc(ctx, token)
	}
	return domain.ExternalIdentity{}, errors.New("unexpected call")
}

func (s *stubVerifier) VerifyApple(ctx context.Context, token string) (domain.ExternalIdentity, error) {
	if s.appleFunc != nil {
		return s.appleFunc(ctx, token)
	}
	return domain.ExternalIdentity{}, errors.New("unexpected call")
}

func newAuthService(t *testing.T, v IdentityVerifier) (*AuthService, Sync) {
	t.Helper()
	sync := newTestSync(t)
	return &AuthService{
		Sync:        sync,
		Sessions:    memory.NewSessionsStore(),
		Credentials: memory.NewCredentialsStore(),
		Verifier:    v,
		Seed:        &SeedService{Sync: sync, Enabled: true},
		SessionTTL:  time.Hour,
	}, sync
}

func TestAuthService_GoogleResolvesOneUser(t *testing.T) {
	v := &stubVerifier{googleFunc: func(_ context.Context, token string) (domain.ExternalIdentity, error) {
		if token != "good" {
			return domain.ExternalIdentity{}, errors.New("bad signature")
		}
		return domain.ExternalIdentity{Provider: "google", ExternalID: "sub-1", Email: "ada@example.com", DisplayName: "Ada"}, nil
	}}
	svc, sync := newAuthService(t, v)
	ctx := context.Background()

	if _, _, err := svc.LoginWithGoogle(ctx, "bad", "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	u1, sess1, err := svc.LoginWithGoogle(ctx, "good", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("LoginWithGoogle: %v", err)
	}
	u2, sess2, err := svc.LoginWithGoogle(ctx, "good", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("LoginWithGoogle: %v", err)
	}
	if u1.ID != u2.ID || sess1 == sess2 {
		t.Fatalf("expected same user with fresh sessions")
	}
	if u1.Username != "Ada" || u1.Avatar == "" {
		t.Fatalf("unexpected user: %+v", u1)
	}
	if n := len(sync.Latest().Users); n != 1 {
		t.Fatalf("expected exactly one user, got %d", n)
	}
	if n := len(sync.Latest().Thoughts); n != len(welcomeThoughts) {
		t.Fatalf("expected welcome thoughts seeded once, got %d", n)
	}

	got, err := svc.GetUserForSession(ctx, sess1)
	if err != nil || got.ID != u1.ID {
		t.Fatalf("GetUserForSession: %+v %v", got, err)
	}
	if err := svc.Logout(ctx, sess1); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.GetUserForSession(ctx, sess1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, sync := newAuthService(t, &stubVerifier{})
	svc.Seed = nil
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "x", "short", "", "", "")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Fields["username"] == "" || ve.Fields["password"] == "" {
		t.Fatalf("expected username and password errors, got %v", err)
	}

	u, _, err := svc.Register(ctx, "ada", "correct horse", "https://img/ada.png", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Avatar != "https://img/ada.png" || u.ExternalKey != "local:ada" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, _, err := svc.Register(ctx, "ADA", "another password", "", "", ""); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ada", "wrong password", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "whatever1", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	again, _, err := svc.Login(ctx, "ada", "correct horse", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected login to resolve the registered user")
	}
	if n := len(sync.Latest().Users); n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
	if n := len(sync.Latest().Thoughts); n != 0 {
		t.Fatalf("expected no seeding when disabled, got %d", n)
	}
}
