package server

import (
	"encoding/json"
	"time"
)

// WebSocket message types
const (
	MessageTypeProgress  = "progress"
	MessageTypeStatus    = "status"
	MessageTypeError     = "error"
	MessageTypeComplete  = "complete"
	MessageTypeCancelled = "cancelled"
	MessageTypePing      = "ping"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	RunID     string      `json:"runId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ProgressUpdate represents matrix progress of one run
type ProgressUpdate struct {
	RunID                  string  `json:"runId"`
	Status                 string  `json:"status"`
	CurrentJob             string  `json:"currentJob,omitempty"`
	CurrentModel           string  `json:"currentModel,omitempty"`
	Progress               float64 `json:"progress"`               // 0-100
	ElapsedTime            float64 `json:"elapsedTime"`            // seconds
	EstimatedTimeRemaining float64 `json:"estimatedTimeRemaining"` // seconds
	TotalSteps             int     `json:"totalSteps"`
	CurrentStepNumber      int     `json:"currentStepNumber"`
	Succeeded              int     `json:"succeeded"`
	Failed                 int     `json:"failed"`
	Skipped                int     `json:"skipped"`
	Message                string  `json:"message"`
}

// StatusUpdate represents run status information
type StatusUpdate struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrorMessage represents error information
type ErrorMessage struct {
	RunID   string `json:"runId"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CompletionMessage represents run completion information
type CompletionMessage struct {
	RunID     string         `json:"runId"`
	Status    string         `json:"status"`
	Counts    map[string]int `json:"counts"`
	Duration  float64        `json:"duration"` // seconds
	Completed time.Time      `json:"completed"`
}

// CancellationMessage represents run cancellation information
type CancellationMessage struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Cancelled time.Time `json:"cancelled"`
	Reason    string    `json:"reason,omitempty"`
}

func newMessage(kind, runID string, data interface{}) *WebSocketMessage {
	return &WebSocketMessage{Type: kind, RunID: runID, Timestamp: time.Now(), Data: data}
}

// NewProgressMessage creates a progress update message
func NewProgressMessage(runID string, progress ProgressUpdate) *WebSocketMessage {
	return newMessage(MessageTypeProgress, runID, progress)
}

// NewStatusMessage creates a status update message
func NewStatusMessage(runID string, status StatusUpdate) *WebSocketMessage {
	return newMessage(MessageTypeStatus, runID, status)
}

// NewErrorMessage creates an error message
func NewErrorMessage(runID string, msg ErrorMessage) *WebSocketMessage {
	return newMessage(MessageTypeError, runID, msg)
}

// NewCompletionMessage creates a completion message
func NewCompletionMessage(runID string, completion CompletionMessage) *WebSocketMessage {
	return newMessage(MessageTypeComplete, runID, completion)
}

// NewCancellationMessage creates a cancellation message
func NewCancellationMessage(runID string, cancellation CancellationMessage) *WebSocketMessage {
	return newMessage(MessageTypeCancelled, runID, cancellation)
}

// ToJSON converts a WebSocket message to JSON bytes
func (m *WebSocketMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
