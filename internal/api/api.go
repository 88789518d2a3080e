// Package api serves consultations over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	api_utils "github.com/ethanbaker/api/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/settings"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/sirupsen/logrus"

	consultation_module "github.com/jkim999/primary-care-consultant/internal/api/modules/consultation"
	health_module "github.com/jkim999/primary-care-consultant/internal/api/modules/health"
)

// Server is the HTTP front of the consultation pipeline
type Server struct {
	engine  *gin.Engine
	service *consultation_module.Service
	cfg     *settings.Settings
	log     logrus.FieldLogger
}

// NewServer builds the gin engine and its modules. It does not start listening.
func NewServer(cfg *settings.Settings, orchestrator *consultation.Orchestrator, history model.HistoryReader, log logrus.FieldLogger) (*Server, error) {
	if cfg.API.Key == "" {
		return nil, fmt.Errorf("API_KEY not set in environment")
	}
	log = logger.Component(log, "api")

	// Add app level settings/routes
	engine := gin.New()
	engine.Use(requestLogger(log), gin.Recovery())
	engine.NoRoute(api_utils.NoRouteHandler)

	// Add trusted proxies
	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.API.AllowedOrigins,
		AllowMethods:     []string{"OPTIONS", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	service := consultation_module.NewService(orchestrator, history, cfg.API.SessionIdleTimeout, log)
	apiKey := cfg.API.Key

	// Base group '/api' for all API routes
	baseGroup := engine.Group("/api")

	health_module.RegisterRoutes(baseGroup, service.Active)
	consultation_module.RegisterRoutes(baseGroup, consultation_module.NewController(service), func(key string) bool {
		return key == apiKey
	})

	return &Server{
		engine:  engine,
		service: service,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Service returns the consultation service
func (s *Server) Service() *consultation_module.Service {
	return s.service
}

// Run starts the sweeper and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.service.Start(s.cfg.API.SweepSchedule); err != nil {
		return err
	}
	defer s.service.Stop()

	srv := &http.Server{
		Addr:              ":" + s.cfg.API.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.cfg.API.Port).Info("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request through logrus
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
