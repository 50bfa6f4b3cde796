package httpapi

import (
	"net/http"
	"strings"

	"thinkflow/internal/domain"
)

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	out, err := a.friendsSvc.Overview(u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

type createFriendRequestRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type appliedResponse struct {
	Applied bool `json:"applied"`
}

func (a *api) handleFriendsCreateRequest(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req createFriendRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	var (
		applied bool
		err     error
	)
	switch {
	case strings.TrimSpace(req.UserID) != "":
		applied, err = a.friendsSvc.SendRequest(r.Context(), u.ID, req.UserID)
	case strings.TrimSpace(req.Username) != "":
		applied, err = a.friendsSvc.SendRequestByUsername(r.Context(), u.ID, req.Username)
	default:
		err = domain.NewValidationError(map[string]string{"userId": "userId or username required"})
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	status := http.StatusOK
	if applied {
		status = http.StatusCreated
	}
	WriteJSON(w, status, appliedResponse{Applied: applied})
}

func (a *api) handleFriendsAccept(w http.ResponseWriter, r *http.Request) {
	a.respondToRequest(w, r, domain.RequestAccepted)
}

func (a *api) handleFriendsDecline(w http.ResponseWriter, r *http.Request) {
	a.respondToRequest(w, r, domain.RequestDeclined)
}

func (a *api) respondToRequest(w http.ResponseWriter, r *http.Request, decision domain.RequestStatus) {
	u, _ := CurrentUser(r.Context())

	fromID := strings.TrimSpace(r.PathValue("id"))
	if fromID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	applied, err := a.friendsSvc.Respond(r.Context(), u.ID, fromID, string(decision))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

func (a *api) handleFriendsRemove(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	friendID := strings.TrimSpace(r.PathValue("id"))
	if friendID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	applied, err := a.friendsSvc.Unfriend(r.Context(), u.ID, friendID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}
