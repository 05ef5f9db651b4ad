package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/logrelay/internal/config"
	"github.com/akave-ai/logrelay/internal/handler"
	"github.com/akave-ai/logrelay/internal/ingest"
	"github.com/akave-ai/logrelay/internal/logger"
	"github.com/akave-ai/logrelay/internal/observability"
	"github.com/akave-ai/logrelay/internal/response"
	"github.com/akave-ai/logrelay/internal/storage"
)

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	log    zerolog.Logger
	nrApp  *newrelic.Application // optional; flushed on Shutdown
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger   zerolog.Logger
	NewRelic *newrelic.Application
}

// New builds the Echo server and registers routes. store must be non-nil.
func New(cfg *config.Config, store storage.LogStore, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	s := &Server{Echo: e, Config: cfg, log: opts.Logger, nrApp: opts.NewRelic}
	e.HTTPErrorHandler = s.handleError

	e.Pre(response.Preflight())
	e.Use(
		response.CORS(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		logger.RequestLogger(opts.Logger),
		middleware.Recover(),
		observability.Middleware(opts.NewRelic),
		middleware.BodyLimit(cfg.Server.BodyLimit),
	)

	normalizer := ingest.NewNormalizer(cfg.Ingest.Retention())
	logHandler := &handler.LogHandler{
		Store:      store,
		Normalizer: normalizer,
		Batch: &ingest.BatchWriter{
			Store:       store,
			Normalizer:  normalizer,
			MaxSize:     cfg.Ingest.MaxBatchSize,
			Concurrency: cfg.Ingest.Concurrency,
			Log:         opts.Logger.With().Str("component", "batch").Logger(),
		},
		DefaultLimit: cfg.Ingest.DefaultLimit,
		MaxLimit:     cfg.Ingest.MaxLimit,
	}

	e.GET("/health", logHandler.Health)
	e.GET("/logs", logHandler.ListLogs)
	e.POST("/logs", logHandler.CreateLog)
	e.POST("/logs/batch", logHandler.CreateBatch)

	return s
}

// handleError is the single place where handler errors become responses.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	response.SetCORS(c.Response().Header())

	var (
		verr    *ingest.ValidationError
		httpErr *echo.HTTPError
	)
	var sendErr error
	switch {
	case errors.As(err, &verr):
		sendErr = response.BadRequest(c, verr.Error())
	case errors.As(err, &httpErr) && (httpErr.Code == http.StatusNotFound || httpErr.Code == http.StatusMethodNotAllowed):
		sendErr = response.NotFound(c)
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge:
		sendErr = response.Error(c, httpErr.Code, http.StatusText(httpErr.Code))
	default:
		s.log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("request failed")
		sendErr = response.InternalError(c, err.Error())
	}
	if sendErr != nil {
		s.log.Error().Err(sendErr).Msg("write error response")
	}
}

// Start starts the HTTP server. Blocks until the context is cancelled or the server fails.
// On context cancel the server is shut down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := ":" + s.Config.Server.Port
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("server listening")
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server and flushes New Relic data.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.nrApp != nil {
		s.nrApp.Shutdown(s.Config.Server.ShutdownTimeout)
	}
	return err
}
