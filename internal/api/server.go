// Package api serves the current report over REST and WebSocket in serve mode.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/storage"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// History limits
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// ReportFunc computes a fresh report
type ReportFunc func(ctx context.Context) (*estimate.Report, error)

// HistoryStore reads stored reports
type HistoryStore interface {
	LatestReport(ctx context.Context) (*estimate.Report, error)
	RecentReports(ctx context.Context, limit int64) ([]*estimate.Report, error)
	Stats(ctx context.Context) (*storage.HistoryStats, error)
}

// UpstreamStatus reports the health of the upstream APIs
type UpstreamStatus interface {
	IsHealthy() bool
	LastCheck() time.Time
}

// StaleHeader marks a response served from the last stored report
const StaleHeader = "X-Report-Stale"

// Server is the API server
type Server struct {
	cfg    *config.Config
	store    HistoryStore
	upstream UpstreamStatus
	report   ReportFunc
	router *gin.Engine
	server *http.Server
	addr   string

	// Cache
	cacheMu   sync.Mutex
	cache     *estimate.Report
	cacheTime time.Time
	fetches   singleflight.Group

	now  func() time.Time
	quit chan struct{}
	once sync.Once
}

// HistoryResponse is the /api/history response
type HistoryResponse struct {
	Stats   *storage.HistoryStats `json:"stats"`
	Reports []*estimate.Report    `json:"reports"`
}

// NewServer creates a new API server. store may be nil when history is disabled.
func NewServer(cfg *config.Config, report ReportFunc, store HistoryStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		store:  store,
		report: report,
		router: router,
		now:    time.Now,
		quit:   make(chan struct{}),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures API endpoints
func (s *Server) setupRoutes() {
	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/report", s.handleReport)
		api.GET("/earnings", s.handleEarnings)
		api.GET("/history", s.handleHistory)
	}

	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", s.handleHealth)
}

// SetUpstream attaches the upstream health shown by /health
func (s *Server) SetUpstream(u UpstreamStatus) {
	s.upstream = u
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.API.Bind)
	if err != nil {
		return err
	}

	s.addr = ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	util.Infof("API server listening on %s", s.addr)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address after Start
func (s *Server) Addr() string {
	return s.addr
}

// Stop shuts down the API server and disconnects websocket clients
func (s *Server) Stop() error {
	s.once.Do(func() { close(s.quit) })
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// currentReport returns the cached report, recomputing it once expired.
// Concurrent misses share a single computation and the cache lock is not
// held while upstreams are fetched.
func (s *Server) currentReport(ctx context.Context) (*estimate.Report, error) {
	if rep, at := s.cached(); rep != nil && s.now().Sub(at) < s.cfg.API.ReportCache {
		return rep, nil
	}

	v, err, _ := s.fetches.Do("report", func() (interface{}, error) {
		rep, err := s.report(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.cacheMu.Lock()
		s.cache = rep
		s.cacheTime = s.now()
		s.cacheMu.Unlock()
		return rep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*estimate.Report), nil
}

// reportOrLatest falls back to the last stored report when the live one fails
func (s *Server) reportOrLatest(c *gin.Context) (*estimate.Report, bool) {
	ctx := c.Request.Context()
	rep, err := s.currentReport(ctx)
	if err == nil {
		return rep, true
	}
	util.Warnf("Failed to compute report: %v", err)

	if s.store != nil {
		if latest, lerr := s.store.LatestReport(ctx); lerr == nil {
			c.Header(StaleHeader, "true")
			return latest, true
		} else if !errors.Is(lerr, storage.ErrNotFound) {
			util.Warnf("Failed to load stored report: %v", lerr)
		}
	}

	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	return nil, false
}

// cached returns the cached report and when it was computed
func (s *Server) cached() (*estimate.Report, time.Time) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache, s.cacheTime
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok", "history": s.store != nil}
	if rep, at := s.cached(); rep != nil {
		resp["report_age_seconds"] = int64(s.now().Sub(at).Seconds())
	}
	if s.upstream != nil {
		resp["upstream_healthy"] = s.upstream.IsHealthy()
		if last := s.upstream.LastCheck(); !last.IsZero() {
			resp["upstream_last_check"] = last.Unix()
		}
	}
	c.JSON(200, resp)
}

// handleReport returns the current report
func (s *Server) handleReport(c *gin.Context) {
	if rep, ok := s.reportOrLatest(c); ok {
		c.JSON(200, rep)
	}
}

// handleEarnings returns the recent earnings section of the current report
func (s *Server) handleEarnings(c *gin.Context) {
	if rep, ok := s.reportOrLatest(c); ok {
		c.JSON(200, rep.Earnings)
	}
}

// handleHistory returns stored reports, newest first
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History storage disabled"})
		return
	}

	limit := int64(DefaultHistoryLimit)
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(400, gin.H{"error": "Invalid limit"})
			return
		}
		if n > MaxHistoryLimit {
			n = MaxHistoryLimit
		}
		limit = n
	}

	ctx := c.Request.Context()
	reports, err := s.store.RecentReports(ctx, limit)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get history"})
		return
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get history stats"})
		return
	}

	c.JSON(200, HistoryResponse{Stats: stats, Reports: reports})
}
