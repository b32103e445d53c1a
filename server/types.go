package server

import (
	"time"

	"llmperf/internal/hardware"
	"llmperf/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// HardwareResponse lists the hardware catalog and the cells it expands to
type HardwareResponse struct {
	Configs  []hardware.Config `json:"configs"`
	Cells    []hardware.Cell   `json:"cells"`
	Count    int               `json:"count"`
	Variants []VariantInfo     `json:"variants"`
}

// VariantInfo describes a runnable hardware and backend pair
type VariantInfo struct {
	Name     string   `json:"name"`
	Hardware string   `json:"hardware"`
	Backend  string   `json:"backend"`
	Device   string   `json:"device"`
	Subsets  []string `json:"subsets"`
}

// ModelsResponse represents the model catalog
type ModelsResponse struct {
	Models []string      `json:"models"`
	Source models.Source `json:"source"`
	Count  int           `json:"count"`
}

// TableResponse wraps a dashboard table
type TableResponse struct {
	Name        string     `json:"name"`
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	Count       int        `json:"count"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// StartRunResponse is returned when a run is accepted
type StartRunResponse struct {
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	StreamURL string `json:"streamUrl"`
}
