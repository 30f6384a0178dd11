// Package api exposes the deal read path, facility sync, time series
// storage, and extraction history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/deal"
	"github.com/sells-group/snf-deals/internal/reconcile"
)

// DealService is the deal read and time-series write path.
type DealService interface {
	GetDeal(ctx context.Context, id int64) (*deal.View, error)
	StoreTimeSeries(ctx context.Context, dealID int64, raw []byte) (*deal.StoreResult, error)
}

// Syncer runs a facility sync.
type Syncer interface {
	Sync(ctx context.Context, req reconcile.SyncRequest) (*reconcile.SyncResult, error)
}

// HistoryLister pages through a deal's extraction history.
type HistoryLister interface {
	List(ctx context.Context, dealID int64, p reconcile.Page) (*reconcile.HistoryPage, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the router. A zero RateLimitRPS disables rate limiting.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	MaxBodyBytes   int64
}

const defaultMaxBody = 4 << 20

// Server holds the handler dependencies.
type Server struct {
	deals   DealService
	syncer  Syncer
	history HistoryLister
	health  Pinger
	log     *zap.Logger
}

// NewServer creates a Server. health may be nil.
func NewServer(deals DealService, syncer Syncer, history HistoryLister, health Pinger) *Server {
	return &Server{
		deals:   deals,
		syncer:  syncer,
		history: history,
		health:  health,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi router with middleware applied.
func (s *Server) Router(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	if opts.RateLimitRPS > 0 {
		r.Use(newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).middleware)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/deals/{id}", func(r chi.Router) {
		r.Use(middleware.RequestSize(opts.MaxBodyBytes))
		r.Get("/", s.handleGetDeal)
		r.Post("/facility-sync", s.handleFacilitySync)
		r.Post("/time-series", s.handleTimeSeries)
		r.Get("/extraction-history", s.handleHistory)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
