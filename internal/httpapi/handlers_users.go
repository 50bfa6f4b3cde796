package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"thinkflow/internal/domain"
)

func writeUser(w http.ResponseWriter, status int, u domain.User) {
	w.Header().Set("ETag", userETag(u))
	WriteJSON(w, status, u.Clone())
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if include := r.URL.Query().Get("include_profile"); (include == "1" || include == "true") && a.feedSvc != nil {
		w.Header().Set("Cache-Control", "no-store")
		p, err := a.feedSvc.Profile(u.ID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	etag := userETag(u)
	if match := strings.TrimSpace(r.Header.Get("If-None-Match")); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeUser(w, http.StatusOK, u)
}

type updateMeRequest struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	updated, err := a.usersSvc.UpdateProfile(r.Context(), u.ID, req.Username, req.Avatar)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, updated)
}

func (a *api) handleUsersDirectory(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteDomainError(w, domain.NewValidationError(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	out, err := a.usersSvc.Directory(u.ID, r.URL.Query().Get("q"), limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// userETag changes whenever any user-visible field does.
func userETag(u domain.User) string {
	b, _ := json.Marshal(u.Clone())
	sum := sha256.Sum256(b)
	return fmt.Sprintf("W/\"user:%s:%s\"", u.ID, hex.EncodeToString(sum[:8]))
}
