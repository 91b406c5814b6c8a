// Package api holds the JSON types shared by the HTTP server and the CLI.
package api

import (
	"encoding/json"
	"time"
)

type UploadResponse struct {
	Status           string          `json:"status"`
	DocumentID       string          `json:"document_id"`
	Filename         string          `json:"filename"`
	FilePath         string          `json:"file_path"`
	ProcessingResult json.RawMessage `json:"processing_result"`
}

type AgentResponse struct {
	Status string `json:"status"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type SearchRequest struct {
	Query          string  `json:"query"`
	Mode           string  `json:"mode"`
	TargetID       string  `json:"target_id,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

type ExtractResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

type HealthResponse struct {
	Status               string `json:"status"`
	AgentInitialized     bool   `json:"agent_initialized"`
	MCPClientInitialized bool   `json:"mcp_client_initialized"`
}

type ServerInfo struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Transport   string `json:"transport"`
	Description string `json:"description,omitempty"`
}

type ToolInfo struct {
	Server      string `json:"server"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type DocumentRecord struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
	Tool       string    `json:"tool"`
	Success    bool      `json:"success"`
}

type HistoryItem struct {
	At         time.Time      `json:"at"`
	Server     string         `json:"server"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ErrorResponse is the body of every non-2xx answer from the daemon.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
