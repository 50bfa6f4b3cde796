package service

import (
	"context"
	"slices"
	"strings"

	"thinkflow/internal/domain"
)

const maxDirectoryResults = 50

type UsersService struct {
	Sync Sync
}

// Directory lists other users, optionally filtered by a case-insensitive
// username substring.
func (s *UsersService) Directory(viewerID, q string, limit int) ([]domain.UserSummary, error) {
	snap := s.Sync.Latest()
	if _, err := currentUser(snap, viewerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxDirectoryResults {
		limit = maxDirectoryResults
	}
	q = strings.ToLower(strings.TrimSpace(q))

	out := make([]domain.UserSummary, 0)
	for _, u := range snap.Users {
		if u.ID == viewerID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Username), q) {
			continue
		}
		out = append(out, u.Summary())
	}
	slices.SortFunc(out, func(a, b domain.UserSummary) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateProfile changes the display name and avatar. Nil fields are left
// alone. Thoughts keep the author name they were written under.
func (s *UsersService) UpdateProfile(ctx context.Context, userID string, username, avatar *string) (domain.User, error) {
	fields := map[string]string{}
	if username != nil {
		name := strings.TrimSpace(*username)
		switch {
		case name == "":
			fields["username"] = "required"
		case len(name) > 48:
			fields["username"] = "must be 48 characters or less"
		default:
			for _, r := range name {
				if r < 32 {
					fields["username"] = "contains invalid characters"
					break
				}
			}
		}
		username = &name
	}
	if avatar != nil {
		a := strings.TrimSpace(*avatar)
		if len(a) > 2048 {
			fields["avatar"] = "must be 2048 characters or less"
		}
		avatar = &a
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}

	var out domain.User
	err := s.Sync.MutateUsers(ctx, []string{userID}, func(users map[string]*domain.User) error {
		u := users[userID]
		if u == nil {
			return domain.ErrUnauthorized
		}
		if username != nil {
			u.Username = *username
		}
		if avatar != nil {
			u.Avatar = *avatar
		}
		out = u.Clone()
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return out, nil
}
