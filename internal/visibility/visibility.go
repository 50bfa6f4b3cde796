// Package visibility decides which thoughts a viewer sees in each view.
//
// Every function here is pure: inputs are never mutated and results are
// freshly allocated, so callers can run them over a shared snapshot.
package visibility

import (
	"slices"

	"thinkflow/internal/domain"
)

// Visible reports whether t belongs to view for viewer.
func Visible(t domain.Thought, viewer domain.User, view domain.View) bool {
	switch view {
	case domain.ViewPersonal:
		return t.UserID == viewer.ID
	case domain.ViewPublic:
		return t.IsPublic
	case domain.ViewFriends:
		if !viewer.HasFriend(t.UserID) {
			return false
		}
		return t.IsPublic || t.SharedWith(viewer.ID)
	default:
		return false
	}
}

// VisibleAnywhere reports whether viewer can read t in at least one view.
func VisibleAnywhere(t domain.Thought, viewer domain.User) bool {
	return Visible(t, viewer, domain.ViewPersonal) ||
		Visible(t, viewer, domain.ViewPublic) ||
		Visible(t, viewer, domain.ViewFriends)
}

// VisibleThoughts filters all by view and tag and orders the result newest
// first. Only the personal view floats pinned thoughts to the top.
func VisibleThoughts(all []domain.Thought, viewer domain.User, view domain.View, tag domain.TagFilter) []domain.Thought {
	out := make([]domain.Thought, 0)
	for _, t := range all {
		if !Visible(t, viewer, view) || !tag.Matches(t.Tag) {
			continue
		}
		out = append(out, t.Clone())
	}

	if view == domain.ViewPersonal {
		slices.SortStableFunc(out, comparePinnedFirst)
	} else {
		slices.SortStableFunc(out, domain.CompareNewestFirst)
	}
	return out
}

func comparePinnedFirst(a, b domain.Thought) int {
	if a.Pinned != b.Pinned {
		if a.Pinned {
			return -1
		}
		return 1
	}
	return domain.CompareNewestFirst(a, b)
}

type Stats struct {
	Total  int                `json:"total"`
	Pinned int                `json:"pinned"`
	Public int                `json:"public"`
	ByTag  map[domain.Tag]int `json:"byTag"`
}

// ComputeStats summarizes thoughts. Every tag of the closed set is present in
// ByTag, with zero when unused.
func ComputeStats(thoughts []domain.Thought) Stats {
	s := Stats{ByTag: make(map[domain.Tag]int, len(domain.Tags()))}
	for _, t := range domain.Tags() {
		s.ByTag[t] = 0
	}
	for _, t := range thoughts {
		s.Total++
		if t.Pinned {
			s.Pinned++
		}
		if t.IsPublic {
			s.Public++
		}
		if t.Tag.Valid() {
			s.ByTag[t.Tag]++
		}
	}
	return s
}
