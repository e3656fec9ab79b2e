// Package api exposes printing over HTTP and WebSocket
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-dispatcher/internal/command"
	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/metrics"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
	"github.com/thereceipt/receipt-dispatcher/internal/transport"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// maxBody bounds request bodies; receipts and raw orders are small
const maxBody = 1 << 20

// Server is the API server
type Server struct {
	router     *gin.Engine
	manager    *printer.Manager
	dispatcher *dispatch.Dispatcher
	queue      *dispatch.Queue
	registry   *registry.Registry
	executor   *command.Executor
	hub        *Hub
	metrics    *metrics.Collector
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and event logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves c on /metrics
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithHub uses an existing event hub, so log sinks and result hooks wired
// before the server exists reach its clients
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// NewServer creates a new API server. queue and reg may be nil, which
// disables async printing and network registration.
func NewServer(manager *printer.Manager, dispatcher *dispatch.Dispatcher, queue *dispatch.Queue, reg *registry.Registry, opts ...Option) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		router:     gin.New(),
		manager:    manager,
		dispatcher: dispatcher,
		queue:      queue,
		registry:   reg,
		executor:   command.NewExecutor(manager, dispatcher, queue, reg),
		logger:     zap.NewNop(),
		upgrader: websocket.Upgrader{
			// Point-of-sale frontends are served from arbitrary local origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.hub == nil {
		server.hub = NewHub(server.logger)
	}

	server.router.Use(gin.Recovery(), requestLogger(server.logger), corsMiddleware())
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/printers", s.handleGetPrinters)
	s.router.GET("/printers/all", s.handleGetAllPrinters)
	s.router.GET("/printer/:id/status", s.handlePrinterStatus)
	s.router.POST("/printer/network", s.handleAddNetworkPrinter)
	s.router.POST("/printer/network/:key/name", s.handleRenameNetworkPrinter)
	s.router.DELETE("/printer/network/:key", s.handleRemoveNetworkPrinter)

	s.router.POST("/print", s.handlePrint)
	s.router.POST("/print/order", s.handlePrintOrder)
	s.router.POST("/print/test", s.handlePrintTest)

	s.router.GET("/debug", s.handleGetDebug)
	s.router.POST("/debug", s.handleSetDebug)

	s.router.GET("/jobs", s.handleGetJobs)
	s.router.DELETE("/jobs", s.handleClearJobs)
	s.router.GET("/job/:id", s.handleGetJob)

	s.router.POST("/command", s.handleCommand)
	s.router.GET("/ws", s.handleWebSocket)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the event hub
func (s *Server) Hub() *Hub { return s.hub }

// Run serves on addr until ctx is canceled, then shuts down gracefully
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

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return srv.Shutdown(shutdownCtx)
}

// handleGetPrinters returns the receipt printers in ?scope (default all).
// An empty pass is an empty list.
func (s *Server) handleGetPrinters(c *gin.Context) {
	scope := printer.ScopeAll
	if raw := c.Query("scope"); raw != "" {
		parsed, err := printer.ParseScope(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		scope = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"printers": s.manager.Discover(c.Request.Context(), scope),
	})
}

// handleGetAllPrinters returns every enumerated printer, receipt or not
func (s *Server) handleGetAllPrinters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"printers": s.manager.DiscoverAll(c.Request.Context()),
	})
}

// handlePrinterStatus re-probes one printer
func (s *Server) handlePrinterStatus(c *gin.Context) {
	req := &receiptformat.PrintRequest{PrinterID: c.Param("id")}

	desc, caps, err := s.dispatcher.Status(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  err.Error(),
			"status": caps.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"printer":      desc,
		"status":       caps.Status,
		"capabilities": caps,
	})
}

// handleAddNetworkPrinter declares a network printer
func (s *Server) handleAddNetworkPrinter(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "network registry is not available"})
		return
	}

	var req struct {
		Host  string `json:"host" binding:"required"`
		Port  int    `json:"port"`
		Name  string `json:"name"`
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host is required"})
		return
	}

	entry, err := s.registry.Add(req.Host, req.Port, req.Name, req.Model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"printer": entry,
	})
}

// handleRenameNetworkPrinter sets the display name of a declared printer
func (s *Server) handleRenameNetworkPrinter(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "network registry is not available"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if !s.registry.Rename(c.Param("key"), req.Name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleRemoveNetworkPrinter forgets a declared printer
func (s *Server) handleRemoveNetworkPrinter(c *gin.Context) {
	if s.registry == nil || !s.registry.Remove(c.Param("key")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handlePrint prints a receipt. With ?async=true the job is queued.
func (s *Server) handlePrint(c *gin.Context) {
	req, _, ok := s.bindPrintRequest(c)
	if !ok {
		return
	}

	if async(c) {
		s.enqueue(c, func(q *dispatch.Queue) string { return q.Enqueue(*req) })
		return
	}

	s.respond(c, s.dispatcher.PrintReceipt(c.Request.Context(), req))
}

// handlePrintOrder sends raw bytes. The bytes arrive either as the body of an
// application/octet-stream request (printer named by ?printerId) or base64
// encoded in the "data" field of a JSON print request.
func (s *Server) handlePrintOrder(c *gin.Context) {
	var req *receiptformat.PrintRequest
	var data []byte

	if c.ContentType() == "application/octet-stream" {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read body: %v", err)})
			return
		}
		req = &receiptformat.PrintRequest{PrinterID: c.Query("printerId")}
		data = body
	} else {
		var body []byte
		var ok bool
		req, body, ok = s.bindPrintRequest(c)
		if !ok {
			return
		}
		var payload struct {
			Data []byte `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data must be base64 encoded bytes"})
			return
		}
		data = payload.Data
	}

	if err := receiptformat.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data is required"})
		return
	}

	if async(c) {
		s.enqueue(c, func(q *dispatch.Queue) string { return q.EnqueueOrder(*req, data) })
		return
	}

	s.respond(c, s.dispatcher.PrintOrder(c.Request.Context(), req, data))
}

// handlePrintTest prints the test page
func (s *Server) handlePrintTest(c *gin.Context) {
	req, _, ok := s.bindPrintRequest(c)
	if !ok {
		return
	}

	if async(c) {
		s.enqueue(c, func(q *dispatch.Queue) string { return q.EnqueueTest(*req) })
		return
	}

	s.respond(c, s.dispatcher.TestPrint(c.Request.Context(), req))
}

func (s *Server) handleGetDebug(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": s.dispatcher.Config().Debug()})
}

// handleSetDebug is the single writer of the debug flag
func (s *Server) handleSetDebug(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	s.dispatcher.Config().SetDebug(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": *req.Enabled})
}

// handleGetJobs returns all print jobs
func (s *Server) handleGetJobs(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []dispatch.Job{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.queue.GetAllJobs()})
}

// handleClearJobs drops completed and failed jobs
func (s *Server) handleClearJobs(c *gin.Context) {
	cleared := 0
	if s.queue != nil {
		cleared = s.queue.ClearFinished()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	job, ok := s.queue.GetJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(c.Request.Context(), req.Command)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindPrintRequest decodes and validates a print request. It writes the
// error response itself and returns the raw body for further decoding.
func (s *Server) bindPrintRequest(c *gin.Context) (*receiptformat.PrintRequest, []byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read body: %v", err)})
		return nil, nil, false
	}

	req, err := receiptformat.ParseRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid print request: %v", err)})
		return nil, nil, false
	}
	if err := receiptformat.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	return req, body, true
}

func (s *Server) enqueue(c *gin.Context, add func(*dispatch.Queue) string) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job_id":  add(s.queue),
	})
}

// respond writes an outcome. Unresolvable printers are 404, other failures
// are 502 since the fault is on the device side.
func (s *Server) respond(c *gin.Context, out dispatch.Outcome) {
	switch {
	case out.OK:
		c.JSON(http.StatusOK, out)
	case errors.Is(out.Err, transport.ErrUnavailable):
		c.JSON(http.StatusNotFound, out)
	default:
		c.JSON(http.StatusBadGateway, out)
	}
}

func async(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.Query("async"))
	return err == nil && v
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
