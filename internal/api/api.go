// Package api serves the execution store over HTTP.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/exec-monitor/internal/execevent"
	"github.com/mrzor/exec-monitor/internal/metrics"
	"github.com/mrzor/exec-monitor/internal/store"
)

// MaxLimit caps the number of events returned by /executions.
const MaxLimit = store.DefaultCapacity

// Reader is the read side of the event store.
type Reader interface {
	Recent(n int) []execevent.Event
	ByPID(pid uint32) ([]execevent.Event, bool)
}

type handler struct {
	reader Reader
}

// NewRouter wires the routes and middlewares.
func NewRouter(reader Reader, m *metrics.Metrics, tp trace.TracerProvider, logger *zap.Logger) *gin.Engine {
	logger = logger.With(zap.String("component", "api"))

	router := gin.New()
	router.Use(
		recovery(logger),
		tracing(tp),
		instrument(m),
		requestLogger(logger),
	)

	h := &handler{reader: reader}
	router.GET("/executions", h.listExecutions)
	router.GET("/executions/:pid", h.executionsByPID)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "not found")
	})
	return router
}

type listQuery struct {
	Limit int `form:"limit,default=500" binding:"min=1,max=500"`
}

func (h *handler) listExecutions(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", MaxLimit))
		return
	}
	c.JSON(http.StatusOK, h.reader.Recent(q.Limit))
}

type pidURI struct {
	PID uint32 `uri:"pid"`
}

func (h *handler) executionsByPID(c *gin.Context) {
	var uri pidURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("invalid pid %q", c.Param("pid")))
		return
	}

	events, ok := h.reader.ByPID(uri.PID)
	if !ok {
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("no executions retained for pid %d", uri.PID))
		return
	}
	c.JSON(http.StatusOK, events)
}

func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
