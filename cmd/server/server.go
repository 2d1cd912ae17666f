package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickyhof/DuckDesk"
	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/metrics"
)

// Server exposes a DuckDesk instance over HTTP.
type Server struct {
	instance       *DuckDesk.Instance
	logger         *slog.Logger
	maxUploadBytes int64
	router         *gin.Engine
	listener       net.Listener
	http           *http.Server
}

func NewServer(instance *DuckDesk.Instance, maxUploadBytes int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		instance:       instance,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics(), requestLogger(s.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/query", s.handleQuery)
	api.GET("/schema", s.handleSchema)
	api.POST("/upload", s.handleUpload)
	api.GET("/databases", s.handleDatabases)
	api.POST("/import", s.handleImport)

	return router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server listening", "addr", listener.Addr().String())
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// statusFor maps a failure to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrIngest):
		return http.StatusInternalServerError
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrExecution),
		errors.Is(err, core.ErrEngineOpen):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Success: false, Error: err.Error()})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	outcome, err := s.instance.Query(c.Request.Context(), req.Database, req.Query)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Success:           true,
		Data:              outcome.Rows,
		Columns:           outcome.Columns,
		AttachedDatabases: outcome.Attached,
		Message:           outcome.Message,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	description, err := s.instance.Schema(c.Request.Context(), c.Query("database"))
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, SchemaResponse{Success: true, Data: description})
}

func (s *Server) handleDatabases(c *gin.Context) {
	c.JSON(http.StatusOK, DatabasesResponse{Success: true, Data: s.instance.Databases()})
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("File exceeds the upload limit of %d bytes", s.maxUploadBytes))
			return
		}
		// A file field sent without a file name is parsed as a plain value.
		if form := c.Request.MultipartForm; form != nil && len(form.Value["file"]) > 0 {
			s.fail(c, http.StatusBadRequest, errors.New("No selected file"))
			return
		}
		s.fail(c, http.StatusBadRequest, errors.New("No file part"))
		return
	}
	defer file.Close()

	result, err := s.instance.Import(c.Request.Context(),
		c.PostForm("database"), c.PostForm("schema"), c.PostForm("table"),
		header.Filename, file)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Success: true,
		Message: result.Message,
		Schema:  result.Schema,
		Table:   result.Table,
		Rows:    result.Rows,
	})
}

func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.instance.ImportURL(c.Request.Context(), req.Database, req.Schema, req.Table, req.URL)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Success: true,
		Message: result.Message,
		Schema:  result.Schema,
		Table:   result.Table,
		Rows:    result.Rows,
	})
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
