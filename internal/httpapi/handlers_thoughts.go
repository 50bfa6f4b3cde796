package httpapi

import (
	"net/http"
	"strings"

	"thinkflow/internal/domain"
	"thinkflow/internal/service"
)

func thoughtID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return "", false
	}
	return id, true
}

type createThoughtRequest struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

func (a *api) handleThoughtsCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req createThoughtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	t, err := a.thoughtsSvc.Create(r.Context(), u.ID, req.Text, req.Tag)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

func (a *api) handleThoughtsGet(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	t, err := a.thoughtsSvc.Get(u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

type updateThoughtRequest struct {
	Text *string `json:"text"`
	Tag  *string `json:"tag"`
}

func (a *api) handleThoughtsUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	var req updateThoughtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Text == nil && req.Tag == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"text": "text or tag required"}))
		return
	}

	t, err := a.thoughtsSvc.Update(r.Context(), u.ID, id, service.ThoughtPatch{Text: req.Text, Tag: req.Tag})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (a *api) handleThoughtsDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	if err := a.thoughtsSvc.Delete(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleThoughtsDeleteAll(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	n, err := a.thoughtsSvc.DeleteAll(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

func (a *api) handleThoughtsPin(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Pinned == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"pinned": "required"}))
		return
	}

	t, err := a.thoughtsSvc.SetPinned(r.Context(), u.ID, id, *req.Pinned)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

type publicRequest struct {
	IsPublic *bool `json:"isPublic"`
}

func (a *api) handleThoughtsPublic(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	var req publicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.IsPublic == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"isPublic": "required"}))
		return
	}

	t, err := a.thoughtsSvc.SetPublic(r.Context(), u.ID, id, *req.IsPublic)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

type shareRequest struct {
	FriendIDs []string `json:"friendIds"`
}

func (a *api) handleThoughtsShare(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := thoughtID(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	t, err := a.thoughtsSvc.SetSharedWith(r.Context(), u.ID, id, req.FriendIDs)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}
