package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"thinkflow/internal/domain"
	"thinkflow/internal/service"
	"thinkflow/internal/store"
)

const (
	streamWriteWait    = 10 * time.Second
	streamMaxFrameSize = 4 << 10
)

type selector struct {
	View domain.View
	Tag  domain.TagFilter
}

type selectorFrame struct {
	View string `json:"view"`
	Tag  string `json:"tag"`
}

type feedFrame struct {
	Type string `json:"type"`
	service.Feed
}

type errorFrame struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

func (a *api) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}
}

// checkOrigin accepts requests without an Origin header, same-host origins
// and configured extra origins.
func (a *api) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.ContainsFunc(a.origins, func(o string) bool {
		return strings.EqualFold(strings.TrimRight(o, "/"), origin)
	})
}

// handleStream pushes the viewer's visible list every time a newer snapshot
// arrives or the client switches selector. Frames from the client are
// selector objects: {"view":"friends","tag":"Ideas"}.
func (a *api) handleStream(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	q := r.URL.Query()
	view, tag, err := parseSelector(q.Get("view"), q.Get("tag"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	conn, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered with an HTTP error.
		a.logger.Info("stream upgrade failed", "user_id", u.ID, "err", err)
		return
	}
	defer conn.Close()

	snaps, cancel := a.snapshots.Subscribe()
	defer cancel()

	selectors := make(chan selector, 1)
	rejects := make(chan error, 1)
	readDone := make(chan struct{})
	go a.readSelectors(conn, selectors, rejects, readDone)

	ticker := time.NewTicker(a.pingInterval)
	defer ticker.Stop()

	cur := selector{View: view, Tag: tag}
	var (
		snap    store.Snapshot
		haveAny bool
		sentVer uint64
		sentSel selector
		sent    bool
	)
	push := func() error {
		if !haveAny {
			return nil
		}
		if sent && sentVer == snap.Version && sentSel == cur {
			return nil
		}
		feed, err := service.VisibleIn(snap, u.ID, cur.View, cur.Tag)
		if err != nil {
			return err
		}
		if err := writeFrame(conn, feedFrame{Type: "feed", Feed: feed}); err != nil {
			return err
		}
		sent, sentVer, sentSel = true, snap.Version, cur
		return nil
	}

	for {
		var err error
		select {
		case s, ok := <-snaps:
			if !ok {
				a.closeStream(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			snap, haveAny = s, true
			err = push()
		case next := <-selectors:
			cur = next
			err = push()
		case rej := <-rejects:
			_, body := domainErrorBody(rej)
			err = writeFrame(conn, errorFrame{Type: "error", Error: body})
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				a.closeStream(conn, websocket.ClosePolicyViolation, "account no longer exists")
				return
			}
			a.logger.Debug("stream write failed", "user_id", u.ID, "err", err)
			return
		}
	}
}

// readSelectors runs until the connection fails. Bad selector frames are
// reported on rejects and leave the current selector in place.
func (a *api) readSelectors(conn *websocket.Conn, selectors chan selector, rejects chan error, done chan<- struct{}) {
	defer close(done)

	pongWait := 2 * a.pingInterval
	conn.SetReadLimit(streamMaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f selectorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			offer(rejects, domain.NewValidationError(map[string]string{"frame": "expected {\"view\":...,\"tag\":...}"}))
			continue
		}
		view, tag, err := parseSelector(f.View, f.Tag)
		if err != nil {
			offer(rejects, err)
			continue
		}
		offer(selectors, selector{View: view, Tag: tag})
	}
}

// offer replaces any unread value so the writer only sees the latest one.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}

func (a *api) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
