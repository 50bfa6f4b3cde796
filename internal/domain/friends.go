package domain

import "fmt"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

func ParseDecision(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestAccepted, RequestDeclined:
		return RequestStatus(s), nil
	default:
		return "", NewValidationError(map[string]string{"decision": fmt.Sprintf("must be %s or %s", RequestAccepted, RequestDeclined)})
	}
}

// FriendRequest lives on the recipient. The From* fields are a snapshot of the
// requester taken when the request was sent.
type FriendRequest struct {
	FromID     string        `json:"fromId"`
	FromName   string        `json:"fromName"`
	FromAvatar string        `json:"fromAvatar"`
	Status     RequestStatus `json:"status"`
	Timestamp  int64         `json:"timestamp"`
}

type OutgoingRequest struct {
	To        UserSummary `json:"to"`
	Timestamp int64       `json:"timestamp"`
}

type FriendsOverview struct {
	Friends  []UserSummary     `json:"friends"`
	Incoming []FriendRequest   `json:"incoming"`
	Outgoing []OutgoingRequest `json:"outgoing"`
}
