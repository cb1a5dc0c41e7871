// Package http exposes the hisaab services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"hisaab/internal/auth"
	"hisaab/internal/cache"
	"hisaab/internal/log"
	"hisaab/internal/middleware/ratelimit"
	"hisaab/internal/middleware/security"
	"hisaab/internal/middleware/trace"
	"hisaab/internal/services"
)

// storageTimeout bounds every store call made while serving a request.
const storageTimeout = 7 * time.Second

const cacheCleanupInterval = 10 * time.Minute

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Hisaabs    *services.HisaabService
	Dashboards *services.DashboardService
	Rooms      *services.RoomService
	Users      *services.UserService
	Issuer     *auth.Issuer
	Store      Pinger
	Logger     *log.Logger

	CORSOrigin         string
	CookieSecure       bool
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	hisaabs      *services.HisaabService
	dashboards   *services.DashboardService
	rooms        *services.RoomService
	users        *services.UserService
	issuer       *auth.Issuer
	store        Pinger
	logger       *log.Logger
	cookieSecure bool

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	caches   *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		hisaabs:      deps.Hisaabs,
		dashboards:   deps.Dashboards,
		rooms:        deps.Rooms,
		users:        deps.Users,
		issuer:       deps.Issuer,
		store:        deps.Store,
		logger:       logger,
		cookieSecure: deps.CookieSecure,
		detector:     detector,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		caches:       cache.NewManager(),
		started:      time.Now(),
	}

	if deps.Dashboards != nil {
		if c := deps.Dashboards.Cache(); c != nil {
			s.caches.Register(c)
		}
	}
	s.caches.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP)(h)
	h = security.NewCORS(deps.CORSOrigin).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.GetRequestID)(h)
	h = log.Middleware(logger)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))

	mux.Handle("GET /api/hisaabs", s.authed(s.handleListHisaabs))
	mux.Handle("GET /api/hisaabs/search", s.authed(s.handleSearchHisaabs))
	mux.Handle("POST /api/hisaabs", s.authed(s.handleCreateHisaab))
	mux.Handle("GET /api/hisaabs/{id}", s.authed(s.handleGetHisaab))
	mux.Handle("PUT /api/hisaabs/{id}", s.authed(s.handleUpdateHisaab))
	mux.Handle("DELETE /api/hisaabs/{id}", s.authed(s.handleDeleteHisaab))
	mux.Handle("POST /api/hisaabs/{id}/unlock", s.authed(s.handleUnlockHisaab))

	mux.Handle("GET /api/dashboard", s.authed(s.handleDashboard))

	mux.Handle("GET /api/rooms", s.authed(s.handleListRooms))
	mux.Handle("POST /api/rooms", s.authed(s.handleCreateRoom))
	mux.Handle("POST /api/rooms/{id}/join", s.authed(s.handleJoinRoom))
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.issuer.Middleware(h)
}

// Shutdown stops background cleanup and then the HTTP server. Only the
// first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
