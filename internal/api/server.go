// Package api serves the gtdflow operations as JSON over HTTP.
//
// Every route lives under /api and answers with
//
//	{"success": true, "data": ...}
//	{"success": false, "code": "NOT_FOUND", "error": "..."}
//
// NotFound maps to 404, NotUndoable to 409, malformed requests to 400 and
// anything else to 500.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server is the gtdflow HTTP server.
type Server struct {
	app    *app.App
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a server over a wired app.
func NewServer(a *app.App) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		app:    a,
		router: router,
		logger: a.Logger,
	}
	router.Use(s.logRequests)

	api := router.Group("/api")
	{
		api.GET("/tasks/:kind", s.handleList)
		api.GET("/tasks/:kind/:id", s.handleGet)
		api.PATCH("/tasks/:kind/:id", s.handleUpdate)
		api.DELETE("/tasks/:kind/:id", s.handleDelete)
		api.POST("/tasks/:kind/:id/complete", s.handleComplete)

		api.POST("/inbox", s.handleCapture)
		api.POST("/inbox/:id/process", s.handleProcess)
		api.POST("/import", s.handleImport)

		api.POST("/focus", s.handleFocusStart)
		api.POST("/focus/:id/stop", s.handleFocusStop)

		api.POST("/objectives", s.handleObjectiveAdd)
		api.PUT("/objectives/:id/progress", s.handleObjectiveProgress)

		api.GET("/history", s.handleHistory)
		api.GET("/history/undoable", s.handleUndoable)
		api.POST("/history/:id/undo", s.handleUndo)

		api.GET("/stats", s.handleStats)
		api.GET("/suggestions", s.handleSuggest)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("api stopped")
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("api request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
