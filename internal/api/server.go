package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"spaceapiclient/internal/integration"
	"spaceapiclient/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Device metadata rarely changes; it is served from cache for this long
const deviceCacheTTL = 5 * time.Second

// Server exposes a configured endpoint's entities over HTTP
type Server struct {
	integ    *integration.Integration
	logger   *zap.Logger
	readOnly bool

	engine *gin.Engine
	server *http.Server
	hub    *hub

	removeListener func()
}

// NewServer creates a new API server. readOnly hides the switch endpoints
// even when a switch exists.
func NewServer(integ *integration.Integration, logger *zap.Logger, port int, readOnly bool) *Server {
	logger = logger.Named("api")
	s := &Server{
		integ:    integ,
		logger:   logger,
		readOnly: readOnly,
		hub:      newHub(logger),
	}

	s.engine = s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The switch already forwards coordinator updates along with its own
	// optimistic changes
	if sw := integ.Switch(); sw != nil {
		sw.SetUpdateHandler(s.pushUpdate)
	} else {
		s.removeListener = integ.Coordinator.AddListener(s.pushUpdate)
	}

	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(s.logger))

	// Two toggles per second per client with a burst of three
	limiter := mw.NewClientLimiter(rate.Limit(2), 3)
	deviceCache := cache.New(deviceCacheTTL, time.Minute)

	r.GET("/", s.handleSitemap)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/state", s.handleGetState)
		api.GET("/device", mw.Cache(deviceCache, deviceCacheTTL), s.handleGetDevice)
		api.GET("/shadow", s.handleGetShadow)
		api.GET("/ws", s.handleWebsocket)

		sw := api.Group("/switch")
		sw.Use(mw.RateLimit(limiter, s.logger))
		sw.POST("/turn_on", s.handleTurnOn)
		sw.POST("/turn_off", s.handleTurnOff)
	}

	return r
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) pushUpdate() {
	s.hub.broadcast(s.liveUpdate())
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop disconnects websocket subscribers and gracefully shuts down the
// HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	if s.removeListener != nil {
		s.removeListener()
	}
	if sw := s.integ.Switch(); sw != nil {
		sw.SetUpdateHandler(nil)
	}
	s.hub.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
