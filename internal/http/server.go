package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagesmith/app/internal/pages"
	"pagesmith/app/internal/revalidate"
)

// Options configures the HTTP server wiring.
type Options struct {
	PageService pages.Service
	Repository  pages.Repository
	Database    *gorm.DB
	Revalidator revalidate.Revalidator
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the JSON API via Huma on top of the standard library mux.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	pages       pages.Service
	repo        pages.Repository
	revalidator revalidate.Revalidator
	logger      *logrus.Logger
	sentry      *sentry.Hub
	db          *gorm.DB
	rateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.PageService == nil {
		return nil, eris.New("page service is required")
	}
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}
	if opts.Revalidator == nil {
		return nil, eris.New("revalidator is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Pagesmith", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:         api,
		mux:         mux,
		pages:       opts.PageService,
		repo:        opts.Repository,
		revalidator: opts.Revalidator,
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		db:          opts.Database,
		rateLimiter: NewRateLimiter(settings),
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources, currently the rate limiter's eviction
// loop. Called from application teardown.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerPageRoutes()
	s.registerLifecycleRoutes()
	s.registerVersionRoutes()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
