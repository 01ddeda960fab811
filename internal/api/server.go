// Package api exposes the HTTP surface: candidate ingestion, projection
// and exception queries, the manual expiry sweep, the live outcome stream
// and the operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/expiry"
	"tradestream/internal/observability"
	"tradestream/internal/storage"
	"tradestream/internal/stream"
)

// CandidateSubmitter hands a structurally valid candidate to the
// processing side: the Kafka producer in split deployments, an in-process
// pipeline in single-binary ones.
type CandidateSubmitter interface {
	Publish(ctx context.Context, t *domain.Trade) error
}

// SubmitterFunc adapts a function to CandidateSubmitter.
type SubmitterFunc func(ctx context.Context, t *domain.Trade) error

// Publish calls f.
func (f SubmitterFunc) Publish(ctx context.Context, t *domain.Trade) error {
	return f(ctx, t)
}

// Server routes HTTP traffic onto the stores, the sweeper and the
// submitter.
type Server struct {
	router      *gin.Engine
	submitter   CandidateSubmitter
	projections storage.TradeProjectionStore
	exceptions  storage.ExceptionStore
	sweeper     *expiry.Sweeper
	hub         *stream.Hub
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
	mode        string
	started     time.Time
	now         func() time.Time
}

// Options configures a Server.
type Options struct {
	Submitter       CandidateSubmitter
	ProjectionStore storage.TradeProjectionStore
	ExceptionStore  storage.ExceptionStore
	Sweeper         *expiry.Sweeper

	// Optional
	Hub      *stream.Hub      // nil reports the outcome stream unavailable
	Cache    *redis.Client    // nil disables the read cache
	CacheTTL time.Duration    // defaults to DefaultCacheTTL
	Logger   *zap.Logger      // defaults to zap.NewNop()
	Mode     string           // reported by /status, defaults to "direct"
	Now      func() time.Time // defaults to time.Now
}

// NewServer builds the router and wires all routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	mode := opts.Mode
	if mode == "" {
		mode = "direct"
	}

	s := &Server{
		submitter:   opts.Submitter,
		projections: opts.ProjectionStore,
		exceptions:  opts.ExceptionStore,
		sweeper:     opts.Sweeper,
		hub:         opts.Hub,
		cache:       opts.Cache,
		cacheTTL:    ttl,
		logger:      logger,
		mode:        mode,
		started:     now(),
		now:         now,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.Default())

	s.router = router
	s.registerRoutes()
	return s
}

// Start serves on addr until the listener fails. Blocking.
func (s *Server) Start(addr string) error {
	s.logger.Info("api server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests and custom http.Server setups.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/status", s.statusReport)
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))

	api := s.router.Group("/api")
	{
		api.POST("/trade", s.submitTrade)
		api.POST("/trades", s.submitTrades)
		api.POST("/trades-file/upload", s.uploadTradesFile)
		api.POST("/expiry/sweep", s.sweepExpiry)
		api.GET("/outcomes/stream", s.streamOutcomes)

		reads := api.Group("")
		reads.Use(s.cached())
		{
			reads.GET("/trades/:tradeId", s.getTrade)
			reads.GET("/trades/:tradeId/latest", s.getLatestTrade)
			reads.GET("/notifications", s.getNotifications)
		}
	}
}

// errorJSON renders the error body shared by all failure responses.
func (s *Server) errorJSON(c *gin.Context, status int, summary string, err error) {
	c.JSON(status, gin.H{
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"error":     summary,
		"message":   err.Error(),
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}

// statusReport summarizes the running instance. Store trouble degrades
// the health field instead of failing the endpoint.
func (s *Server) statusReport(c *gin.Context) {
	ctx := c.Request.Context()

	storeHealth := "ok"
	stats, err := s.projections.Stats(ctx)
	if err != nil {
		storeHealth = "unreachable"
		s.logger.Warn("projection stats unavailable", zap.Error(err))
		stats = &storage.ProjectionStats{}
	}
	exceptions, err := s.exceptions.Count(ctx)
	if err != nil {
		storeHealth = "unreachable"
		s.logger.Warn("exception count unavailable", zap.Error(err))
	}

	clients := 0
	if s.hub != nil {
		clients = s.hub.Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":           s.mode,
		"uptime_seconds": int64(s.now().Sub(s.started).Seconds()),
		"store":          storeHealth,
		"projection": gin.H{
			"trades":  stats.Trades,
			"rows":    stats.Rows,
			"active":  stats.Active,
			"expired": stats.Expired,
		},
		"exceptions":     exceptions,
		"stream_clients": clients,
	})
}
