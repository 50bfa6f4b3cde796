package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Tag string

const (
	TagUrgent      Tag = "Urgent"
	TagIdeas       Tag = "Ideas"
	TagToDo        Tag = "To Do"
	TagQuestions   Tag = "Questions"
	TagInspiration Tag = "Inspiration"
)

// MaxThoughtLen bounds thought text in characters.
const MaxThoughtLen = 5000

// TagAll is only valid as a filter.
const TagAll = "All"

var tags = []Tag{TagUrgent, TagIdeas, TagToDo, TagQuestions, TagInspiration}

// Tags returns the closed set of categories in display order.
func Tags() []Tag {
	return slices.Clone(tags)
}

func (t Tag) Valid() bool {
	return slices.Contains(tags, t)
}

func ParseTag(s string) (Tag, error) {
	t := Tag(strings.TrimSpace(s))
	if !t.Valid() {
		return "", NewValidationError(map[string]string{"tag": "unknown tag"})
	}
	return t, nil
}

// TagFilter selects a single tag; the zero value and "All" match everything.
type TagFilter string

func (f TagFilter) Matches(t Tag) bool {
	if f == "" || f == TagAll {
		return true
	}
	return Tag(f) == t
}

func ParseTagFilter(s string) (TagFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == TagAll {
		return TagAll, nil
	}
	if !Tag(s).Valid() {
		return "", NewValidationError(map[string]string{"tag": "unknown tag"})
	}
	return TagFilter(s), nil
}

type View string

const (
	ViewPersonal View = "personal"
	ViewPublic   View = "public"
	ViewFriends  View = "friends"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.TrimSpace(s)); v {
	case ViewPersonal, ViewPublic, ViewFriends:
		return v, nil
	case "":
		return ViewPersonal, nil
	default:
		return "", NewValidationError(map[string]string{"view": fmt.Sprintf("must be one of %s, %s, %s", ViewPersonal, ViewPublic, ViewFriends)})
	}
}

type Thought struct {
	ID                  string   `json:"id"`
	UserID              string   `json:"userId"`
	AuthorName          string   `json:"authorName"`
	Text                string   `json:"text"`
	Tag                 Tag      `json:"tag"`
	CreatedAt           int64    `json:"createdAt"`
	Pinned              bool     `json:"pinned"`
	IsPublic            bool     `json:"isPublic"`
	SharedWithFriendIDs []string `json:"sharedWithFriendIds"`
}

func (t Thought) Clone() Thought {
	out := t
	out.SharedWithFriendIDs = slices.Clone(t.SharedWithFriendIDs)
	if out.SharedWithFriendIDs == nil {
		out.SharedWithFriendIDs = []string{}
	}
	return out
}

func (t Thought) SharedWith(userID string) bool {
	return slices.Contains(t.SharedWithFriendIDs, userID)
}

// CompareNewestFirst orders thoughts by CreatedAt descending. Ties keep their
// relative order when used with a stable sort.
func CompareNewestFirst(a, b Thought) int {
	switch {
	case a.CreatedAt > b.CreatedAt:
		return -1
	case a.CreatedAt < b.CreatedAt:
		return 1
	default:
		return 0
	}
}
