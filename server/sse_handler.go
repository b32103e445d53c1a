package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llmperf/internal/logger"
)

// SSEHandler streams run state as Server-Sent Events
type SSEHandler struct {
	runs      *RunManager
	log       *logger.Logger
	keepAlive time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(runs *RunManager, log *logger.Logger) *SSEHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &SSEHandler{runs: runs, log: log, keepAlive: 30 * time.Second}
}

// StreamRun sends the current state, then every update and a keep-alive
// ping. The stream ends after the terminal state has been sent.
func (h *SSEHandler) StreamRun(c *gin.Context) {
	runID := c.Param("id")
	run, updates, unsubscribe, ok := h.runs.Subscribe(runID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "Run not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Writer.WriteString(run.ToSSEMessage())
	c.Writer.Flush()
	if run.Terminal() {
		return
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	sentFinal := false
	for {
		select {
		case <-ctx.Done():
			h.log.DebugWithContext(&logger.LogContext{RunID: runID}, "SSE connection closed")
			return
		case <-ticker.C:
			c.Writer.WriteString("data: {\"type\":\"ping\",\"timestamp\":\"" + time.Now().Format(time.RFC3339) + "\"}\n\n")
			c.Writer.Flush()
		case update, open := <-updates:
			if !open {
				// the terminal update may have been dropped on a full channel
				if final, ok := h.runs.Get(runID); ok && !sentFinal {
					c.Writer.WriteString(final.ToSSEMessage())
					c.Writer.Flush()
				}
				return
			}
			sentFinal = update.Terminal()
			c.Writer.WriteString(update.ToSSEMessage())
			c.Writer.Flush()
		}
	}
}
