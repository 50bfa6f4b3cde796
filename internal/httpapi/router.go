package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"thinkflow/internal/auth"
	"thinkflow/internal/service"
	"thinkflow/internal/store"
)

// Snapshots is what the websocket stream follows.
type Snapshots interface {
	Latest() store.Snapshot
	Subscribe() (<-chan store.Snapshot, func())
}

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	// StorePing reports backing store health on /healthz.
	StorePing func(context.Context) error

	Auth     *service.AuthService
	Thoughts *service.ThoughtsService
	Friends  *service.FriendsService
	Feed     *service.FeedService
	Users    *service.UsersService
	Stream   Snapshots

	Cookies auth.SessionCookies

	// AllowedOrigins lists extra origins the websocket stream accepts besides
	// same-host requests.
	AllowedOrigins []string
	PingInterval   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		storePing:    opts.StorePing,
		authSvc:      opts.Auth,
		thoughtsSvc:  opts.Thoughts,
		friendsSvc:   opts.Friends,
		feedSvc:      opts.Feed,
		usersSvc:     opts.Users,
		snapshots:    opts.Stream,
		cookies:      opts.Cookies,
		origins:      opts.AllowedOrigins,
		pingInterval: opts.PingInterval,
		loginLimiter: newLoginLimiter(5*time.Minute, 10),
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	publicMux.HandleFunc("GET /{$}", api.handleHome)

	if api.authSvc == nil {
		apiMux.HandleFunc("/v1/", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		apiMux.HandleFunc("POST /v1/auth/google", api.handleAuthLoginGoogle)
		apiMux.HandleFunc("POST /v1/auth/apple", api.handleAuthLoginApple)
		apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))

		apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))
		if api.usersSvc != nil {
			apiMux.HandleFunc("PATCH /v1/users/me", api.requireAuth(api.handleUsersMeUpdate))
			apiMux.HandleFunc("GET /v1/users", api.requireAuth(api.handleUsersDirectory))
		}

		if api.feedSvc != nil {
			apiMux.HandleFunc("GET /v1/feed", api.requireAuth(api.handleFeed))
			apiMux.HandleFunc("GET /v1/stats", api.requireAuth(api.handleStats))
		}

		if api.thoughtsSvc != nil {
			apiMux.HandleFunc("POST /v1/thoughts", api.requireAuth(api.handleThoughtsCreate))
			apiMux.HandleFunc("DELETE /v1/thoughts", api.requireAuth(api.handleThoughtsDeleteAll))
			apiMux.HandleFunc("GET /v1/thoughts/{id}", api.requireAuth(api.handleThoughtsGet))
			apiMux.HandleFunc("PATCH /v1/thoughts/{id}", api.requireAuth(api.handleThoughtsUpdate))
			apiMux.HandleFunc("DELETE /v1/thoughts/{id}", api.requireAuth(api.handleThoughtsDelete))
			apiMux.HandleFunc("POST /v1/thoughts/{id}/pin", api.requireAuth(api.handleThoughtsPin))
			apiMux.HandleFunc("POST /v1/thoughts/{id}/public", api.requireAuth(api.handleThoughtsPublic))
			apiMux.HandleFunc("PUT /v1/thoughts/{id}/share", api.requireAuth(api.handleThoughtsShare))
			apiMux.HandleFunc("GET /v1/export", api.requireAuth(api.handleExport))
			apiMux.HandleFunc("POST /v1/import", api.requireAuth(api.handleImport))
		}

		if api.friendsSvc != nil {
			apiMux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			apiMux.HandleFunc("POST /v1/friends/requests", api.requireAuth(api.handleFriendsCreateRequest))
			apiMux.HandleFunc("POST /v1/friends/requests/{id}/accept", api.requireAuth(api.handleFriendsAccept))
			apiMux.HandleFunc("POST /v1/friends/requests/{id}/decline", api.requireAuth(api.handleFriendsDecline))
			apiMux.HandleFunc("DELETE /v1/friends/{id}", api.requireAuth(api.handleFriendsRemove))
		}

		if api.snapshots != nil && api.feedSvc != nil {
			apiMux.HandleFunc("GET /v1/stream", api.requireAuth(api.handleStream))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	storePing func(context.Context) error

	authSvc     *service.AuthService
	thoughtsSvc *service.ThoughtsService
	friendsSvc  *service.FriendsService
	feedSvc     *service.FeedService
	usersSvc    *service.UsersService
	snapshots   Snapshots

	cookies      auth.SessionCookies
	origins      []string
	pingInterval time.Duration

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.storePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.storePing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

func (a *api) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ThinkFlow API. See /v1/.\n"))
}
