package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"thinkflow/internal/domain"
	"thinkflow/internal/service"
)

func TestRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	expectErrorCode(t, env.do(http.MethodGet, "/v1/feed", "", nil), http.StatusUnauthorized, "unauthorized")

	forged := &http.Cookie{Name: "thinkflow_session", Value: "abc.def"}
	expectErrorCode(t, env.do(http.MethodGet, "/v1/feed", "", forged), http.StatusUnauthorized, "unauthorized")

	expectErrorCode(t, env.do(http.MethodGet, "/v1/nope", "", nil), http.StatusNotFound, "not_found")
}

func TestThoughtLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, ada := env.signIn("ada")
	_, bob := env.signIn("bob")

	rr := env.do(http.MethodPost, "/v1/thoughts", `{"text":"  first idea ","tag":"Ideas"}`, ada)
	expectStatus(t, rr, http.StatusCreated)
	th := decodeBody[domain.Thought](t, rr)
	if th.Text != "first idea" || th.AuthorName != "ada" || th.IsPublic {
		t.Fatalf("unexpected thought: %+v", th)
	}
	path := "/v1/thoughts/" + th.ID

	expectErrorCode(t, env.do(http.MethodGet, path, "", bob), http.StatusNotFound, "not_found")

	rr = env.do(http.MethodPatch, path, `{"tag":"Urgent"}`, ada)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[domain.Thought](t, rr); got.Tag != domain.TagUrgent || got.Text != "first idea" {
		t.Fatalf("unexpected thought after patch: %+v", got)
	}

	expectStatus(t, env.do(http.MethodPost, path+"/pin", `{"pinned":true}`, ada), http.StatusOK)
	expectStatus(t, env.do(http.MethodPost, path+"/public", `{"isPublic":true}`, ada), http.StatusOK)

	rr = env.do(http.MethodGet, "/v1/feed?view=public", "", bob)
	expectStatus(t, rr, http.StatusOK)
	feed := decodeBody[service.Feed](t, rr)
	if len(feed.Thoughts) != 1 || !feed.Thoughts[0].Pinned {
		t.Fatalf("expected bob to see ada's public thought, got %+v", feed.Thoughts)
	}

	expectErrorCode(t, env.do(http.MethodDelete, path, "", bob), http.StatusForbidden, "forbidden")
	expectStatus(t, env.do(http.MethodDelete, path, "", ada), http.StatusNoContent)
	expectErrorCode(t, env.do(http.MethodGet, path, "", ada), http.StatusNotFound, "not_found")
}

func TestThoughtValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	_, ada := env.signIn("ada")

	rr := env.do(http.MethodPost, "/v1/thoughts", `{"text":"","tag":"Gossip"}`, ada)
	body := expectErrorCode(t, rr, http.StatusBadRequest, "validation_error")
	if body.Error.Fields["text"] == "" || body.Error.Fields["tag"] == "" {
		t.Fatalf("expected text and tag field errors, got %+v", body.Error.Fields)
	}

	expectErrorCode(t, env.do(http.MethodPost, "/v1/thoughts", `{"text":"x","tag":"Ideas","extra":1}`, ada), http.StatusBadRequest, "bad_json")
	expectErrorCode(t, env.do(http.MethodGet, "/v1/feed?view=everyone", "", ada), http.StatusBadRequest, "validation_error")
	expectStatus(t, env.do(http.MethodGet, "/v1/feed?tag=All&view=friends", "", ada), http.StatusOK)
}

func TestExportImportAndClear(t *testing.T) {
	env := newTestEnv(t)
	_, ada := env.signIn("ada")

	expectStatus(t, env.do(http.MethodPost, "/v1/thoughts", `{"text":"Why do we dream?","tag":"Questions"}`, ada), http.StatusCreated)

	rr := env.do(http.MethodGet, "/v1/export", "", ada)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "(Questions) \nWhy do we dream?\n---\n") {
		t.Fatalf("unexpected text export: %q", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), ".txt") {
		t.Fatalf("expected txt attachment, got %q", rr.Header().Get("Content-Disposition"))
	}

	rr = env.do(http.MethodGet, "/v1/export?format=json", "", ada)
	expectStatus(t, rr, http.StatusOK)
	exported := rr.Body.String()

	rr = env.do(http.MethodDelete, "/v1/thoughts", "", ada)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[map[string]int](t, rr)["deleted"]; got != 1 {
		t.Fatalf("expected 1 deleted, got %d", got)
	}

	rr = env.do(http.MethodPost, "/v1/import", exported, ada)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[map[string]int](t, rr)["imported"]; got != 1 {
		t.Fatalf("expected 1 imported, got %d", got)
	}
	rr = env.do(http.MethodPost, "/v1/import", exported, ada)
	if got := decodeBody[map[string]int](t, rr)["imported"]; got != 0 {
		t.Fatalf("expected re-import to add nothing, got %d", got)
	}

	rr = env.do(http.MethodPost, "/v1/import", `[{"id":"z","text":"x","tag":"Nope"}]`, ada)
	body := expectErrorCode(t, rr, http.StatusBadRequest, "malformed_import")
	if body.Error.Fields["thoughts[0]"] == "" {
		t.Fatalf("expected indexed field error, got %+v", body.Error.Fields)
	}

	expectErrorCode(t, env.do(http.MethodGet, "/v1/export?format=pdf", "", ada), http.StatusBadRequest, "validation_error")
}

func TestStatsAndProfile(t *testing.T) {
	env := newTestEnv(t)
	_, ada := env.signIn("ada")

	expectStatus(t, env.do(http.MethodPost, "/v1/thoughts", `{"text":"a","tag":"Ideas"}`, ada), http.StatusCreated)
	expectStatus(t, env.do(http.MethodPost, "/v1/thoughts", `{"text":"b","tag":"Ideas"}`, ada), http.StatusCreated)

	rr := env.do(http.MethodGet, "/v1/stats", "", ada)
	expectStatus(t, rr, http.StatusOK)
	stats := decodeBody[struct {
		Total int            `json:"total"`
		ByTag map[string]int `json:"byTag"`
	}](t, rr)
	if stats.Total != 2 || stats.ByTag["Ideas"] != 2 || stats.ByTag["Urgent"] != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rr = env.do(http.MethodGet, "/v1/users/me?include_profile=1", "", ada)
	expectStatus(t, rr, http.StatusOK)
	if p := decodeBody[service.Profile](t, rr); p.ThoughtCount != 2 || p.User.Username != "ada" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
