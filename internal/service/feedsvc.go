package service

import (
	"thinkflow/internal/domain"
	"thinkflow/internal/store"
	"thinkflow/internal/visibility"
)

type Profile struct {
	User         domain.User `json:"user"`
	ThoughtCount int         `json:"thoughtCount"`
	PublicCount  int         `json:"publicCount"`
}

type Feed struct {
	Version  uint64           `json:"version"`
	View     domain.View      `json:"view"`
	Tag      domain.TagFilter `json:"tag"`
	Thoughts []domain.Thought `json:"thoughts"`
}

// FeedService answers read-only questions from the latest snapshot.
type FeedService struct {
	Sync Sync
}

func (s *FeedService) Visible(viewerID string, view domain.View, tag domain.TagFilter) (Feed, error) {
	return VisibleIn(s.Sync.Latest(), viewerID, view, tag)
}

// VisibleIn computes the feed over a specific snapshot, reading the viewer's
// friends from that same snapshot.
func VisibleIn(snap store.Snapshot, viewerID string, view domain.View, tag domain.TagFilter) (Feed, error) {
	viewer, err := currentUser(snap, viewerID)
	if err != nil {
		return Feed{}, err
	}
	return Feed{
		Version:  snap.Version,
		View:     view,
		Tag:      tag,
		Thoughts: visibility.VisibleThoughts(snap.Thoughts, viewer, view, tag),
	}, nil
}

// Stats summarizes the viewer's own thoughts.
func (s *FeedService) Stats(viewerID string) (visibility.Stats, error) {
	snap := s.Sync.Latest()
	viewer, err := currentUser(snap, viewerID)
	if err != nil {
		return visibility.Stats{}, err
	}
	own := visibility.VisibleThoughts(snap.Thoughts, viewer, domain.ViewPersonal, domain.TagFilter(domain.TagAll))
	return visibility.ComputeStats(own), nil
}

func (s *FeedService) Profile(viewerID string) (Profile, error) {
	snap := s.Sync.Latest()
	viewer, err := currentUser(snap, viewerID)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{User: viewer.Clone()}
	for _, t := range snap.Thoughts {
		if t.UserID != viewer.ID {
			continue
		}
		p.ThoughtCount++
		if t.IsPublic {
			p.PublicCount++
		}
	}
	return p, nil
}
