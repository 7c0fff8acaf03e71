// Package nodehttp exposes the worker-node RPC surface: sub-task execution
// and the heartbeat probe.
package nodehttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"candleflow/internal/dispatch"
	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// Server wraps a gin engine around a local orchestrator.
type Server struct {
	addr    string
	engine  *gin.Engine
	orch    *orchestrator.Orchestrator
	started time.Time
	running atomic.Int64
}

func NewServer(addr string, orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("node server requires an orchestrator")
	}
	if addr == "" {
		addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: addr, engine: engine, orch: orch, started: time.Now()}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/api/node/execute", s.handleExecute)
	engine.GET("/api/node/health", s.handleHealth)
	return s, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("node RPC listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Engine exposes the router for httptest-based tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleExecute(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := dispatch.ValidateExecutePayload(body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "schema_id": dispatch.SchemaID})
		return
	}
	var req dispatch.ExecuteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode, err := orchestrator.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	freq, err := market.ParseFrequency(req.Frequency)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	dr, err := market.NewDateRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	task := orchestrator.NewTask(req.Symbols, mode, freq, dr)
	task.MaxConcurrency = req.MaxConcurrency

	s.running.Add(1)
	defer s.running.Add(-1)
	result, err := s.orch.Run(c.Request.Context(), task)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dispatch.ExecuteResponse{
			SchemaID: dispatch.SchemaID,
			TaskID:   req.TaskID,
			Status:   string(orchestrator.StatusFailed),
			Error:    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, dispatch.ExecuteResponse{
		SchemaID:    dispatch.SchemaID,
		TaskID:      req.TaskID,
		Status:      string(result.Status),
		Results:     result.Symbols,
		Records:     result.Records,
		DroppedRows: result.DroppedRows,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dispatch.HealthResponse{
		SchemaID:      dispatch.SchemaID,
		Status:        "healthy",
		LastHeartbeat: time.Now().UTC(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		RunningTasks:  int(s.running.Load()),
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
