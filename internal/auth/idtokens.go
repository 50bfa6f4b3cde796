package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"

	"thinkflow/internal/domain"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
	ProviderLocal  = "local"
)

var errMissingToken = errors.New("missing id token")

// IDTokenVerifier turns provider ID tokens into verified identities. An empty
// audience disables that provider.
type IDTokenVerifier struct {
	GoogleClientID string
	AppleServiceID string
}

func (v IDTokenVerifier) VerifyGoogle(ctx context.Context, token string) (domain.ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return domain.ExternalIdentity{}, errMissingToken
	}
	if v.GoogleClientID == "" {
		return domain.ExternalIdentity{}, errors.New("google sign-in is not configured")
	}

	payload, err := idtoken.Validate(ctx, token, v.GoogleClientID)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return domain.ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	return domain.ExternalIdentity{
		Provider:    ProviderGoogle,
		ExternalID:  payload.Subject,
		Email:       normalizeEmail(stringClaim(payload.Claims, "email")),
		DisplayName: stringClaim(payload.Claims, "name"),
		AvatarURL:   stringClaim(payload.Claims, "picture"),
	}, nil
}

func (v IDTokenVerifier) VerifyApple(ctx context.Context, token string) (domain.ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return domain.ExternalIdentity{}, errMissingToken
	}
	if v.AppleServiceID == "" {
		return domain.ExternalIdentity{}, errors.New("apple sign-in is not configured")
	}
	if err := ctx.Err(); err != nil {
		return domain.ExternalIdentity{}, err
	}

	idToken, err := validator.NewClient().VerifyIdToken(v.AppleServiceID, token)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}
	if idToken.Iss != "https://appleid.apple.com" {
		return domain.ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", idToken.Iss)
	}

	// Apple tokens carry no display name.
	return domain.ExternalIdentity{
		Provider:   ProviderApple,
		ExternalID: idToken.Sub,
		Email:      normalizeEmail(idToken.Email),
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
