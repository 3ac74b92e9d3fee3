// Package api exposes the update pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/config"
	"github.com/pevans/pricefed/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRunsLimit is how many runs GET /api/v1/update/runs returns when no
// limit is given.
const DefaultRunsLimit = 20

// UpdateAPIServer represents the HTTP API server for triggering and
// inspecting ingestion runs.
type UpdateAPIServer struct {
	service  *pricefed.UpdateService
	store    *store.Store
	gatherer prometheus.Gatherer
	config   *config.FileConfig
}

// NewUpdateAPIServer creates a new update API server. Metrics are served
// from gatherer when it is non-nil.
func NewUpdateAPIServer(service *pricefed.UpdateService, st *store.Store, gatherer prometheus.Gatherer) *UpdateAPIServer {
	return &UpdateAPIServer{
		service:  service,
		store:    st,
		gatherer: gatherer,
	}
}

// SetConfig makes the effective configuration available, with secrets
// masked, at GET /api/v1/config.
func (s *UpdateAPIServer) SetConfig(cfg *config.FileConfig) {
	s.config = cfg
}

// SetupRouter configures the Gin router with the update API routes.
func (s *UpdateAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1/update")
	{
		api.POST("/force", s.HandleForce)
		api.POST("/run", s.HandleRun)
		api.GET("/status", s.HandleStatus)
		api.GET("/runs", s.HandleListRuns)
	}

	router.GET("/api/v1/config", s.HandleGetConfig)

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// RunResponse is returned by the run endpoints.
type RunResponse struct {
	Started bool              `json:"started"`
	Summary *pricefed.Summary `json:"summary,omitempty"`
}

// ListRunsResponse represents the response for GET /api/v1/update/runs.
type ListRunsResponse struct {
	Runs  []store.Run `json:"runs"`
	Total int         `json:"total"`
}

// HandleForce handles POST /api/v1/update/force. The run ignores staleness.
// With ?wait=true the response carries the run summary; otherwise the run
// continues in the background and 202 is returned.
func (s *UpdateAPIServer) HandleForce(c *gin.Context) {
	if c.Query("wait") != "true" {
		s.startBackground(c, func(ctx context.Context) error {
			_, err := s.service.RunNow(ctx)
			return err
		})
		return
	}

	summary, err := s.service.RunNow(c.Request.Context())
	s.respondRun(c, summary, err)
}

// HandleRun handles POST /api/v1/update/run. A run only starts when the
// stored prices are stale.
func (s *UpdateAPIServer) HandleRun(c *gin.Context) {
	summary, started, err := s.service.RunIfStale(c.Request.Context())
	if err == nil && !started {
		c.JSON(http.StatusOK, RunResponse{Started: false})
		return
	}
	s.respondRun(c, summary, err)
}

// HandleStatus handles GET /api/v1/update/status.
func (s *UpdateAPIServer) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status())
}

// HandleListRuns handles GET /api/v1/update/runs.
func (s *UpdateAPIServer) HandleListRuns(c *gin.Context) {
	limit := DefaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list runs"))
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs, Total: len(runs)})
}

// HandleGetConfig handles GET /api/v1/config. The body is YAML in the
// config file format.
func (s *UpdateAPIServer) HandleGetConfig(c *gin.Context) {
	if s.config == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Configuration is not exposed"))
		return
	}

	c.YAML(http.StatusOK, s.config.Redacted())
}

func (s *UpdateAPIServer) startBackground(c *gin.Context, run func(ctx context.Context) error) {
	if s.service.Status().Running {
		c.JSON(http.StatusConflict, errorResponse("run_in_progress", pricefed.ErrRunInProgress.Error()))
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		err := run(ctx)
		switch {
		case err == nil, errors.Is(err, pricefed.ErrRunInProgress):
		case errors.Is(err, pricefed.ErrServiceStopped):
			log.Printf("WARN: Background run rejected: %v", err)
		default:
			log.Printf("ERROR: Background run failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, RunResponse{Started: true})
}

func (s *UpdateAPIServer) respondRun(c *gin.Context, summary *pricefed.Summary, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, RunResponse{Started: true, Summary: summary})
	case errors.Is(err, pricefed.ErrRunInProgress):
		c.JSON(http.StatusConflict, errorResponse("run_in_progress", err.Error()))
	case errors.Is(err, pricefed.ErrServiceStopped):
		c.JSON(http.StatusServiceUnavailable, errorResponse("service_stopped", err.Error()))
	case errors.Is(err, pricefed.ErrNoPages):
		c.JSON(http.StatusBadGateway, errorResponse("source_unavailable", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("run_failed", err.Error()))
	}
}
