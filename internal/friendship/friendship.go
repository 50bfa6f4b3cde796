// Package friendship implements the friend-request lifecycle over user
// records: none -> pending -> accepted | declined.
//
// Resolved requests are not kept. Accepted shows up as membership in both
// friends lists; declined leaves no trace. Callers hand in the records to
// mutate and persist them together so both sides change in one write.
package friendship

import (
	"slices"
	"time"

	"thinkflow/internal/domain"
)

// SendRequest appends a pending request from requester to target. It returns
// false without changing anything when requester and target are the same
// user, a pending request from requester already sits on target, or the two
// are already friends.
func SendRequest(requester, target *domain.User, now time.Time) bool {
	if requester == nil || target == nil || requester.ID == target.ID {
		return false
	}
	if target.PendingFrom(requester.ID) >= 0 {
		return false
	}
	if target.HasFriend(requester.ID) && requester.HasFriend(target.ID) {
		return false
	}

	target.FriendRequests = append(target.FriendRequests, domain.FriendRequest{
		FromID:     requester.ID,
		FromName:   requester.Username,
		FromAvatar: requester.Avatar,
		Status:     domain.RequestPending,
		Timestamp:  domain.Millis(now),
	})
	return true
}

// Respond resolves the pending request from fromID on viewer. requester may
// be nil when the requesting account no longer exists; the request is then
// dropped and no friendship is created. It returns false when there is no
// pending request to resolve.
func Respond(viewer *domain.User, fromID string, requester *domain.User, decision domain.RequestStatus) (bool, error) {
	if decision != domain.RequestAccepted && decision != domain.RequestDeclined {
		_, err := domain.ParseDecision(string(decision))
		return false, err
	}
	if viewer == nil {
		return false, nil
	}
	idx := viewer.PendingFrom(fromID)
	if idx < 0 {
		return false, nil
	}
	viewer.FriendRequests = slices.Delete(viewer.FriendRequests, idx, idx+1)

	if decision == domain.RequestAccepted && requester != nil && requester.ID == fromID {
		addFriend(viewer, requester.ID)
		addFriend(requester, viewer.ID)
		// A crossing request from viewer to requester is settled too.
		if j := requester.PendingFrom(viewer.ID); j >= 0 {
			requester.FriendRequests = slices.Delete(requester.FriendRequests, j, j+1)
		}
	}
	return true, nil
}

// Unfriend removes the friendship from both sides. It returns false when the
// two users were not friends on either side.
func Unfriend(a, b *domain.User) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	removedA := removeFriend(a, b.ID)
	removedB := removeFriend(b, a.ID)
	return removedA || removedB
}

func addFriend(u *domain.User, id string) {
	if !u.HasFriend(id) {
		u.Friends = append(u.Friends, id)
	}
}

func removeFriend(u *domain.User, id string) bool {
	idx := slices.Index(u.Friends, id)
	if idx < 0 {
		return false
	}
	u.Friends = slices.Delete(u.Friends, idx, idx+1)
	return true
}
