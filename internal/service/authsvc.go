package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"thinkflow/internal/auth"
	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

type IdentityVerifier interface {
	VerifyGoogle(ctx context.Context, idToken string) (domain.ExternalIdentity, error)
	VerifyApple(ctx context.Context, idToken string) (domain.ExternalIdentity, error)
}

// DefaultAvatar is used when an identity provider hands over no picture.
const DefaultAvatar = "https://api.dicebear.com/7.x/thumbs/svg?seed="

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

type AuthService struct {
	Sync        Sync
	Sessions    store.SessionsStore
	Credentials store.CredentialsStore
	Verifier    IdentityVerifier
	Seed        *SeedService
	Logger      *slog.Logger
	SessionTTL  time.Duration
	Now         func() time.Time
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken, ip, userAgent string) (domain.User, string, error) {
	identity, err := s.Verifier.VerifyGoogle(ctx, idToken)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return s.signIn(ctx, identity, "", ip, userAgent)
}

func (s *AuthService) LoginWithApple(ctx context.Context, idToken, ip, userAgent string) (domain.User, string, error) {
	identity, err := s.Verifier.VerifyApple(ctx, idToken)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return s.signIn(ctx, identity, "", ip, userAgent)
}

// Register creates a local account. The username is claimed through the
// credentials store first so two concurrent registrations cannot both win.
func (s *AuthService) Register(ctx context.Context, username, password, avatar, ip, userAgent string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	fields := map[string]string{}
	if !usernamePattern.MatchString(username) {
		fields["username"] = "must be 3-32 letters, digits, '.', '_' or '-'"
	}
	if err := auth.CheckPasswordPolicy(password); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for k, v := range ve.Fields {
				fields[k] = v
			}
		}
	}
	if len(fields) > 0 {
		return domain.User{}, "", domain.NewValidationError(fields)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	userID := uuid.NewString()
	err = s.Credentials.CreateCredential(ctx, domain.Credential{
		Username:     username,
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    nowFunc(s.Now),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	identity := domain.ExternalIdentity{
		Provider:    auth.ProviderLocal,
		ExternalID:  strings.ToLower(username),
		DisplayName: username,
		AvatarURL:   strings.TrimSpace(avatar),
	}
	return s.signIn(ctx, identity, userID, ip, userAgent)
}

func (s *AuthService) Login(ctx context.Context, username, password, ip, userAgent string) (domain.User, string, error) {
	username = strings.TrimSpace(username)

	cred, err := s.Credentials.GetCredential(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	ok, err := auth.VerifyPassword(cred.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	identity := domain.ExternalIdentity{
		Provider:    auth.ProviderLocal,
		ExternalID:  strings.ToLower(cred.Username),
		DisplayName: cred.Username,
	}
	return s.signIn(ctx, identity, cred.UserID, ip, userAgent)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, nowFunc(s.Now))
}

// GetUserForSession reads the user from the latest snapshot. A session whose
// user has vanished is treated as signed out.
func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return currentUser(s.Sync.Latest(), sess.UserID)
}

// signIn resolves identity to exactly one user, seeding new accounts, and
// opens a session.
func (s *AuthService) signIn(ctx context.Context, identity domain.ExternalIdentity, userID, ip, userAgent string) (domain.User, string, error) {
	now := nowFunc(s.Now)
	candidate := domain.User{
		ID:             userID,
		Username:       candidateUsername(identity),
		Avatar:         identity.AvatarURL,
		JoinedAt:       domain.Millis(now),
		Friends:        []string{},
		FriendRequests: []domain.FriendRequest{},
	}
	if candidate.Avatar == "" {
		candidate.Avatar = DefaultAvatar + identity.ExternalID
	}

	u, created, err := s.Sync.ResolveUser(ctx, identity, candidate)
	if err != nil {
		return domain.User{}, "", err
	}
	if created {
		if _, err := s.Seed.SeedUser(ctx, u); err != nil {
			s.logger().Warn("seed welcome thoughts failed", "user_id", u.ID, "err", err)
		}
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, now.Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, sessID, nil
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func candidateUsername(identity domain.ExternalIdentity) string {
	if name := strings.TrimSpace(identity.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(identity.Email, "@"); ok && local != "" {
		return local
	}
	return "Thinker"
}
