package domain

import (
	"slices"
	"time"
)

type User struct {
	ID string `json:"id"`
	// ExternalKey identifies the verified external identity this account was
	// created for. It is unique across users.
	ExternalKey    string          `json:"-"`
	Username       string          `json:"username"`
	Avatar         string          `json:"avatar"`
	JoinedAt       int64           `json:"joinedAt"`
	Friends        []string        `json:"friends"`
	FriendRequests []FriendRequest `json:"friendRequests"`
}

// UserSummary is the display-only view of another user.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	JoinedAt int64  `json:"joinedAt"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar, JoinedAt: u.JoinedAt}
}

func (u User) HasFriend(id string) bool {
	return slices.Contains(u.Friends, id)
}

// PendingFrom returns the index of the pending request sent by fromID, or -1.
func (u User) PendingFrom(fromID string) int {
	return slices.IndexFunc(u.FriendRequests, func(r FriendRequest) bool {
		return r.FromID == fromID && r.Status == RequestPending
	})
}

// Equal reports whether u and o hold the same values. Nil and empty lists
// compare equal.
func (u User) Equal(o User) bool {
	return u.ID == o.ID &&
		u.ExternalKey == o.ExternalKey &&
		u.Username == o.Username &&
		u.Avatar == o.Avatar &&
		u.JoinedAt == o.JoinedAt &&
		slices.Equal(u.Friends, o.Friends) &&
		slices.Equal(u.FriendRequests, o.FriendRequests)
}

func (u User) Clone() User {
	out := u
	out.Friends = slices.Clone(u.Friends)
	out.FriendRequests = slices.Clone(u.FriendRequests)
	if out.Friends == nil {
		out.Friends = []string{}
	}
	if out.FriendRequests == nil {
		out.FriendRequests = []FriendRequest{}
	}
	return out
}

// ExternalIdentity is a verified identity handed over by an authentication
// collaborator.
type ExternalIdentity struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

func (e ExternalIdentity) Key() string {
	return e.Provider + ":" + e.ExternalID
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Credential is a local username/password login bound to a user.
type Credential struct {
	Username     string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// Millis converts t to the unix millisecond timestamps stored on records.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
