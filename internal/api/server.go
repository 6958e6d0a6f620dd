// Package api exposes sync progress, endpoint state and wallet clusters over
// HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/graph"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = ingestion.DefaultEventCapacity
	maxClusterDepth   = 32
	shutdownTimeout   = 10 * time.Second
)

// SyncStatus is the part of the sync engine the API reads and controls.
type SyncStatus interface {
	Cursor(ctx context.Context, mint string) (*domain.SyncCursor, error)
	Events(mint string, n int) []ingestion.Event
	Pause()
	Resume()
	Paused() bool
}

// EndpointLister reports RPC endpoint state.
type EndpointLister interface {
	Endpoints() []solana.Endpoint
	Current() int
}

// Response is the JSON envelope of every reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    any    `json:"data"`
}

// Options contains configuration for creating a Server.
type Options struct {
	Sync      SyncStatus
	Endpoints EndpointLister // optional
	Clusters  *ClusterCache  // optional
	Logger    logrus.FieldLogger
}

// Server serves the status API.
type Server struct {
	sync      SyncStatus
	endpoints EndpointLister
	clusters  *ClusterCache
	logger    logrus.FieldLogger
	router    *gin.Engine
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		sync:      opts.Sync,
		endpoints: opts.Endpoints,
		clusters:  opts.Clusters,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger, "/health"))
	r.GET("/health", s.health)
	r.GET("/endpoints", s.listEndpoints)
	r.POST("/pause", s.pause)
	r.POST("/resume", s.resume)

	tokens := r.Group("/tokens/:mint")
	tokens.GET("/cursor", s.cursor)
	tokens.GET("/events", s.events)
	tokens.GET("/clusters", s.walletClusters)
	tokens.GET("/stats", s.stats)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, Response{Code: status, Message: err.Error()})
}

func statusOf(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) health(c *gin.Context) {
	ok(c, gin.H{"status": "ok", "paused": s.sync.Paused()})
}

type endpointView struct {
	Index       int       `json:"index"`
	URL         string    `json:"url"`
	Healthy     bool      `json:"healthy"`
	Current     bool      `json:"current"`
	LastChecked time.Time `json:"last_checked"`
}

func (s *Server) listEndpoints(c *gin.Context) {
	if s.endpoints == nil {
		ok(c, []endpointView{})
		return
	}
	current := s.endpoints.Current()
	list := s.endpoints.Endpoints()
	out := make([]endpointView, 0, len(list))
	for _, ep := range list {
		out = append(out, endpointView{
			Index:       ep.Index,
			URL:         ep.URL,
			Healthy:     ep.Healthy,
			Current:     ep.Index == current,
			LastChecked: ep.LastChecked,
		})
	}
	ok(c, out)
}

func (s *Server) pause(c *gin.Context) {
	s.sync.Pause()
	ok(c, gin.H{"paused": true})
}

func (s *Server) resume(c *gin.Context) {
	s.sync.Resume()
	ok(c, gin.H{"paused": false})
}

type cursorView struct {
	Mint          string `json:"mint"`
	Before        string `json:"before"`
	LastSignature string `json:"last_signature"`
	UpdatedAt     int64  `json:"updated_at"`
}

func (s *Server) cursor(c *gin.Context) {
	cur, err := s.sync.Cursor(c.Request.Context(), c.Param("mint"))
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	ok(c, cursorView{
		Mint:          cur.Mint,
		Before:        cur.Before,
		LastSignature: cur.LastSignature,
		UpdatedAt:     cur.UpdatedAt,
	})
}

func (s *Server) events(c *gin.Context) {
	limit, err := intQuery(c, "limit", defaultEventLimit, 1, maxEventLimit)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	events := s.sync.Events(c.Param("mint"), limit)
	if events == nil {
		events = []ingestion.Event{}
	}
	ok(c, events)
}

func (s *Server) walletClusters(c *gin.Context) {
	if s.clusters == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("cluster analysis disabled"))
		return
	}
	depth, err := intQuery(c, "depth", s.clusters.Depth(), 0, maxClusterDepth)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	clusters, err := s.clusters.Clusters(c.Request.Context(), c.Param("mint"), depth)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	if c.Query("connected") == "true" {
		clusters = graph.Connected(clusters)
	}
	ok(c, gin.H{"depth": depth, "clusters": clusters})
}

func (s *Server) stats(c *gin.Context) {
	if s.clusters == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("cluster analysis disabled"))
		return
	}
	snap, err := s.clusters.Snapshot(c.Request.Context(), c.Param("mint"))
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	ok(c, gin.H{"stats": snap.Stats, "updated_at": snap.UpdatedAt})
}

func intQuery(c *gin.Context, key string, def, lo, hi int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number", key)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s: out of range %d..%d", key, lo, hi)
	}
	return v, nil
}
