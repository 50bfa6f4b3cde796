package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/friendship"
	"thinkflow/internal/store"
)

type FriendsService struct {
	Sync Sync
	Now  func() time.Time
}

// SendRequest files a friend request from requesterID on targetID. It reports
// false when nothing changed: the target is the requester, a request is
// already pending or the two are already friends.
func (s *FriendsService) SendRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return false, domain.NewValidationError(map[string]string{"userId": "required"})
	}
	if targetID == requesterID {
		return false, nil
	}
	now := nowFunc(s.Now)
	return s.mutate(ctx, []string{requesterID, targetID}, func(users map[string]*domain.User) error {
		requester, target := users[requesterID], users[targetID]
		if requester == nil {
			return domain.ErrUnauthorized
		}
		if target == nil {
			return domain.ErrNotFound
		}
		if !friendship.SendRequest(requester, target, now) {
			return errNoChange
		}
		return nil
	})
}

// SendRequestByUsername resolves the target by exact, case-insensitive
// username in the latest snapshot.
func (s *FriendsService) SendRequestByUsername(ctx context.Context, requesterID, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, domain.NewValidationError(map[string]string{"username": "required"})
	}
	for _, u := range s.Sync.Latest().Users {
		if strings.EqualFold(u.Username, username) {
			return s.SendRequest(ctx, requesterID, u.ID)
		}
	}
	return false, domain.ErrNotFound
}

// Respond accepts or declines the pending request from fromID. It reports
// false when no such request is pending.
func (s *FriendsService) Respond(ctx context.Context, viewerID, fromID, decision string) (bool, error) {
	d, err := domain.ParseDecision(decision)
	if err != nil {
		return false, err
	}
	return s.mutate(ctx, []string{viewerID, fromID}, func(users map[string]*domain.User) error {
		viewer := users[viewerID]
		if viewer == nil {
			return domain.ErrUnauthorized
		}
		applied, err := friendship.Respond(viewer, fromID, users[fromID], d)
		if err != nil {
			return err
		}
		if !applied {
			return errNoChange
		}
		return nil
	})
}

// Unfriend ends the friendship on both sides and withdraws the thoughts
// either user shared with the other. A repeated call still clears any grants
// left behind by an earlier failure.
func (s *FriendsService) Unfriend(ctx context.Context, viewerID, friendID string) (bool, error) {
	applied, err := s.mutate(ctx, []string{viewerID, friendID}, func(users map[string]*domain.User) error {
		viewer := users[viewerID]
		if viewer == nil {
			return domain.ErrUnauthorized
		}
		if !friendship.Unfriend(viewer, users[friendID]) {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if err := s.revokeShares(ctx, viewerID, friendID); err != nil {
		return applied, err
	}
	return applied, nil
}

func (s *FriendsService) revokeShares(ctx context.Context, a, b string) error {
	for _, t := range s.Sync.Latest().Thoughts {
		var other string
		switch t.UserID {
		case a:
			other = b
		case b:
			other = a
		default:
			continue
		}
		if !slices.Contains(t.SharedWithFriendIDs, other) {
			continue
		}
		t = t.Clone()
		t.SharedWithFriendIDs = slices.DeleteFunc(t.SharedWithFriendIDs, func(id string) bool { return id == other })
		if err := s.Sync.UpdateThought(ctx, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Overview derives the viewer's friends and both directions of pending
// requests from the latest snapshot.
func (s *FriendsService) Overview(viewerID string) (domain.FriendsOverview, error) {
	snap := s.Sync.Latest()
	viewer, err := currentUser(snap, viewerID)
	if err != nil {
		return domain.FriendsOverview{}, err
	}

	out := domain.FriendsOverview{
		Friends:  []domain.UserSummary{},
		Incoming: []domain.FriendRequest{},
		Outgoing: []domain.OutgoingRequest{},
	}
	for _, id := range viewer.Friends {
		if u, ok := snap.User(id); ok {
			out.Friends = append(out.Friends, u.Summary())
		}
	}
	for _, r := range viewer.FriendRequests {
		if r.Status == domain.RequestPending {
			out.Incoming = append(out.Incoming, r)
		}
	}
	for _, u := range snap.Users {
		if u.ID == viewer.ID {
			continue
		}
		if i := u.PendingFrom(viewer.ID); i >= 0 {
			out.Outgoing = append(out.Outgoing, domain.OutgoingRequest{To: u.Summary(), Timestamp: u.FriendRequests[i].Timestamp})
		}
	}

	slices.SortFunc(out.Friends, func(a, b domain.UserSummary) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out, nil
}

func (s *FriendsService) mutate(ctx context.Context, ids []string, fn store.UsersMutation) (bool, error) {
	err := s.Sync.MutateUsers(ctx, ids, fn)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNoChange):
		return false, nil
	default:
		return false, err
	}
}
