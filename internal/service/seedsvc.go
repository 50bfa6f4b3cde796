package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"thinkflow/internal/domain"
)

type welcomeThought struct {
	text   string
	tag    domain.Tag
	age    time.Duration
	pinned bool
}

var welcomeThoughts = []welcomeThought{
	{"Welcome to ThinkFlow! Tap the + to add your first thought.", domain.TagInspiration, 5 * time.Minute, true},
	{"Remember to buy groceries: Milk, Eggs, Bread.", domain.TagToDo, 2 * time.Hour, false},
	{"Why do we dream?", domain.TagQuestions, 24 * time.Hour, false},
}

// SeedService gives brand new accounts a few starter thoughts.
type SeedService struct {
	Sync    Sync
	Enabled bool
	Now     func() time.Time
}

func (s *SeedService) SeedUser(ctx context.Context, u domain.User) (int, error) {
	if s == nil || !s.Enabled {
		return 0, nil
	}
	now := nowFunc(s.Now)

	thoughts := make([]domain.Thought, 0, len(welcomeThoughts))
	for _, w := range welcomeThoughts {
		thoughts = append(thoughts, domain.Thought{
			ID:                  uuid.NewString(),
			UserID:              u.ID,
			AuthorName:          u.Username,
			Text:                w.text,
			Tag:                 w.tag,
			CreatedAt:           domain.Millis(now.Add(-w.age)),
			Pinned:              w.pinned,
			SharedWithFriendIDs: []string{},
		})
	}
	return s.Sync.InsertThoughts(ctx, thoughts)
}
