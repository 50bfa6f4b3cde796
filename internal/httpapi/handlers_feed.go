package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/transfer"
)

const maxImportBody = 8 << 20

func parseSelector(view, tag string) (domain.View, domain.TagFilter, error) {
	v, err := domain.ParseView(view)
	if err != nil {
		return "", "", err
	}
	f, err := domain.ParseTagFilter(tag)
	if err != nil {
		return "", "", err
	}
	return v, f, nil
}

func (a *api) handleFeed(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	q := r.URL.Query()

	view, tag, err := parseSelector(q.Get("view"), q.Get("tag"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	feed, err := a.feedSvc.Visible(u.ID, view, tag)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, feed)
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	stats, err := a.feedSvc.Stats(u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (a *api) handleExport(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"format": "must be text or json"}))
		return
	}

	thoughts, err := a.thoughtsSvc.Export(u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	name := "thinkflow_export_" + time.Now().UTC().Format("2006-01-02")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".json"))
		err = transfer.WriteJSON(w, thoughts)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".txt"))
		err = transfer.WriteText(w, thoughts)
	}
	if err != nil {
		a.logger.Warn("export write failed", "user_id", u.ID, "err", err)
	}
}

func (a *api) handleImport(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	added, err := a.thoughtsSvc.Import(r.Context(), u.ID, r.Body)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"imported": added})
}
