package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"llmperf/internal/app"
	"llmperf/internal/leaderboard"
	"llmperf/internal/runners"
	"llmperf/internal/stats"
	"llmperf/internal/utils"
)

func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// HealthHandler reports liveness
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: time.Now(),
	})
}

// HardwareHandler lists the hardware catalog and its cells
func (s *Server) HardwareHandler(c *gin.Context) {
	catalog, err := s.opts.Hardware()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	cells := catalog.Cells()
	var variants []VariantInfo
	for _, v := range runners.Variants() {
		variants = append(variants, VariantInfo{
			Name:     v.Name(),
			Hardware: v.Hardware(),
			Backend:  v.Backend(),
			Device:   v.Device(),
			Subsets:  v.Subsets(),
		})
	}
	c.JSON(http.StatusOK, HardwareResponse{
		Configs:  catalog.Configs(),
		Cells:    cells,
		Count:    len(cells),
		Variants: variants,
	})
}

// ModelsHandler returns the resolved model catalog
func (s *Server) ModelsHandler(c *gin.Context) {
	catalog := s.opts.Models(c.Request.Context())
	c.JSON(http.StatusOK, ModelsResponse{
		Models: catalog.Models,
		Source: catalog.Source,
		Count:  len(catalog.Models),
	})
}

// TableHandler serves one dashboard table as JSON. ?refresh=true rebuilds
// the snapshot and lowercase column names filter rows, e.g. ?machine=1xA10.
func (s *Server) TableHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, table, ok := s.table(c, name)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, TableResponse{
			Name:        name,
			Columns:     table.Columns,
			Rows:        table.Rows,
			Count:       len(table.Rows),
			GeneratedAt: snap.GeneratedAt,
		})
	}
}

// ExportCSVHandler serves a dashboard table as a CSV attachment
func (s *Server) ExportCSVHandler(c *gin.Context) {
	name := c.DefaultQuery("table", leaderboard.TableBenchmarks)
	_, table, ok := s.table(c, name)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "llm-perf-"+name+".csv"))
	c.Status(http.StatusOK)
	if err := utils.WriteCSVTable(c.Writer, table.Columns, table.Rows); err != nil {
		c.Error(err)
	}
}

func (s *Server) table(c *gin.Context, name string) (*leaderboard.Snapshot, stats.Table, bool) {
	snap, err := s.cache.Get(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil {
		abortWithError(c, http.StatusBadGateway, fmt.Sprintf("Failed to gather benchmark results: %v", err))
		return nil, stats.Table{}, false
	}
	table, err := snap.Table(name)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return nil, stats.Table{}, false
	}
	return snap, filterRows(table, c), true
}

func filterRows(table stats.Table, c *gin.Context) stats.Table {
	filters := make(map[int]string)
	for i, col := range table.Columns {
		if v, ok := c.GetQuery(strings.ToLower(col)); ok {
			filters[i] = v
		}
	}
	if len(filters) == 0 {
		return table
	}
	out := stats.Table{Columns: table.Columns, Rows: [][]string{}}
	for _, row := range table.Rows {
		keep := true
		for i, want := range filters {
			if i >= len(row) || row[i] != want {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// StartRunHandler starts a matrix run for one cell
func (s *Server) StartRunHandler(c *gin.Context) {
	var spec app.RunSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid run request: %v", err))
		return
	}

	run, err := s.runs.Start(spec)
	switch {
	case errors.Is(err, ErrRunActive):
		abortWithError(c, http.StatusConflict, fmt.Sprintf("%v (run %s)", err, s.runs.Active()))
		return
	case err != nil:
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, StartRunResponse{
		RunID:     run.ID,
		Status:    run.Status,
		StreamURL: "/api/runs/" + run.ID + "/stream",
	})
}

// ListRunsHandler lists known runs, newest first
func (s *Server) ListRunsHandler(c *gin.Context) {
	runs := s.runs.List()
	for i := range runs {
		runs[i].Outcomes = nil
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs), "active": s.runs.Active()})
}

// GetRunHandler returns one run including its outcomes
func (s *Server) GetRunHandler(c *gin.Context) {
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		abortWithError(c, http.StatusNotFound, "Run not found")
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRunHandler cancels a running run
func (s *Server) CancelRunHandler(c *gin.Context) {
	runID := c.Param("id")
	run, ok := s.runs.Get(runID)
	if !ok {
		abortWithError(c, http.StatusNotFound, "Run not found")
		return
	}
	if !s.runs.Cancel(runID) {
		abortWithError(c, http.StatusConflict, fmt.Sprintf("Run is already %s", run.Status))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Cancellation requested",
		"runId":   runID,
		"status":  RunCancelled,
	})
}
