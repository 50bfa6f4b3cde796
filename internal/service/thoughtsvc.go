package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"thinkflow/internal/domain"
	"thinkflow/internal/transfer"
	"thinkflow/internal/visibility"
)

const MaxThoughtLen = domain.MaxThoughtLen

type ThoughtPatch struct {
	Text *string
	Tag  *string
}

type ThoughtsService struct {
	Sync Sync
	Now  func() time.Time
}

func (s *ThoughtsService) Create(ctx context.Context, userID, text, tag string) (domain.Thought, error) {
	author, err := currentUser(s.Sync.Latest(), userID)
	if err != nil {
		return domain.Thought{}, err
	}

	text, fields := checkText(text)
	t, err := domain.ParseTag(tag)
	if err != nil {
		fields["tag"] = "unknown tag"
	}
	if len(fields) > 0 {
		return domain.Thought{}, domain.NewValidationError(fields)
	}

	th := domain.Thought{
		ID:                  uuid.NewString(),
		UserID:              author.ID,
		AuthorName:          author.Username,
		Text:                text,
		Tag:                 t,
		CreatedAt:           domain.Millis(nowFunc(s.Now)),
		SharedWithFriendIDs: []string{},
	}
	if _, err := s.Sync.InsertThoughts(ctx, []domain.Thought{th}); err != nil {
		return domain.Thought{}, err
	}
	return th, nil
}

func (s *ThoughtsService) Update(ctx context.Context, userID, id string, patch ThoughtPatch) (domain.Thought, error) {
	return s.modify(ctx, userID, id, func(t *domain.Thought, _ domain.User) error {
		fields := map[string]string{}
		if patch.Text != nil {
			text, f := checkText(*patch.Text)
			fields = f
			t.Text = text
		}
		if patch.Tag != nil {
			tag, err := domain.ParseTag(*patch.Tag)
			if err != nil {
				fields["tag"] = "unknown tag"
			}
			t.Tag = tag
		}
		if len(fields) > 0 {
			return domain.NewValidationError(fields)
		}
		return nil
	})
}

func (s *ThoughtsService) SetPinned(ctx context.Context, userID, id string, pinned bool) (domain.Thought, error) {
	return s.modify(ctx, userID, id, func(t *domain.Thought, _ domain.User) error {
		t.Pinned = pinned
		return nil
	})
}

func (s *ThoughtsService) SetPublic(ctx context.Context, userID, id string, public bool) (domain.Thought, error) {
	return s.modify(ctx, userID, id, func(t *domain.Thought, _ domain.User) error {
		t.IsPublic = public
		return nil
	})
}

// SetSharedWith replaces the set of friends a private thought is shared with.
// Every id must belong to a current friend of the owner.
func (s *ThoughtsService) SetSharedWith(ctx context.Context, userID, id string, friendIDs []string) (domain.Thought, error) {
	return s.modify(ctx, userID, id, func(t *domain.Thought, owner domain.User) error {
		ids := make([]string, 0, len(friendIDs))
		for _, fid := range friendIDs {
			fid = strings.TrimSpace(fid)
			if !owner.HasFriend(fid) {
				return domain.NewValidationError(map[string]string{"friendIds": fmt.Sprintf("%q is not a friend", fid)})
			}
			if !slices.Contains(ids, fid) {
				ids = append(ids, fid)
			}
		}
		t.SharedWithFriendIDs = ids
		return nil
	})
}

func (s *ThoughtsService) Delete(ctx context.Context, userID, id string) error {
	if _, _, err := s.owned(userID, id); err != nil {
		return err
	}
	return s.Sync.DeleteThought(ctx, id)
}

// DeleteAll removes every thought the user owns and nothing else.
func (s *ThoughtsService) DeleteAll(ctx context.Context, userID string) (int, error) {
	if _, err := currentUser(s.Sync.Latest(), userID); err != nil {
		return 0, err
	}
	return s.Sync.DeleteThoughtsByOwner(ctx, userID)
}

// Import merges an archive into the user's thoughts. Records whose id already
// exists are skipped; the rest become the importer's, shared only with
// importer's current friends.
func (s *ThoughtsService) Import(ctx context.Context, userID string, r io.Reader) (int, error) {
	owner, err := currentUser(s.Sync.Latest(), userID)
	if err != nil {
		return 0, err
	}
	thoughts, err := transfer.ParseImport(r)
	if err != nil {
		return 0, err
	}
	if len(thoughts) == 0 {
		return 0, nil
	}

	now := domain.Millis(nowFunc(s.Now))
	for i := range thoughts {
		t := &thoughts[i]
		t.UserID = owner.ID
		t.AuthorName = owner.Username
		t.Text = strings.TrimSpace(t.Text)
		if t.CreatedAt <= 0 {
			t.CreatedAt = now
		}
		t.SharedWithFriendIDs = slices.DeleteFunc(t.SharedWithFriendIDs, func(id string) bool {
			return !owner.HasFriend(id)
		})
	}
	return s.Sync.InsertThoughts(ctx, thoughts)
}

// Export returns the user's thoughts in personal view order.
func (s *ThoughtsService) Export(userID string) ([]domain.Thought, error) {
	snap := s.Sync.Latest()
	owner, err := currentUser(snap, userID)
	if err != nil {
		return nil, err
	}
	return visibility.VisibleThoughts(snap.Thoughts, owner, domain.ViewPersonal, domain.TagFilter(domain.TagAll)), nil
}

// Get returns a thought the viewer can read in at least one view.
func (s *ThoughtsService) Get(userID, id string) (domain.Thought, error) {
	snap := s.Sync.Latest()
	viewer, err := currentUser(snap, userID)
	if err != nil {
		return domain.Thought{}, err
	}
	t, ok := snap.Thought(id)
	if !ok || !visibility.VisibleAnywhere(t, viewer) {
		return domain.Thought{}, domain.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *ThoughtsService) modify(ctx context.Context, userID, id string, edit func(*domain.Thought, domain.User) error) (domain.Thought, error) {
	owner, t, err := s.owned(userID, id)
	if err != nil {
		return domain.Thought{}, err
	}
	if err := edit(&t, owner); err != nil {
		return domain.Thought{}, err
	}
	if err := s.Sync.UpdateThought(ctx, t); err != nil {
		return domain.Thought{}, err
	}
	return t, nil
}

// owned returns the owner and a copy of thought id when userID owns it.
// Thoughts the user cannot see at all are reported as missing.
func (s *ThoughtsService) owned(userID, id string) (domain.User, domain.Thought, error) {
	snap := s.Sync.Latest()
	u, err := currentUser(snap, userID)
	if err != nil {
		return domain.User{}, domain.Thought{}, err
	}
	t, ok := snap.Thought(id)
	if !ok {
		return domain.User{}, domain.Thought{}, domain.ErrNotFound
	}
	if t.UserID != u.ID {
		if visibility.VisibleAnywhere(t, u) {
			return domain.User{}, domain.Thought{}, domain.ErrForbidden
		}
		return domain.User{}, domain.Thought{}, domain.ErrNotFound
	}
	return u, t.Clone(), nil
}

func checkText(text string) (string, map[string]string) {
	fields := map[string]string{}
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		fields["text"] = "required"
	case utf8.RuneCountInString(text) > MaxThoughtLen:
		fields["text"] = fmt.Sprintf("must be %d characters or less", MaxThoughtLen)
	}
	return text, fields
}
