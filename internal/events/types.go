package events

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinelkit/logscrub/internal/rules"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeScrubResult represents a completed text scrub
	EventTypeScrubResult EventType = "scrub_result"
	// EventTypeFileJob represents a completed file scrub
	EventTypeFileJob EventType = "file_job"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// ScrubResultEvent reports one scrubbed text payload
type ScrubResultEvent struct {
	RequestID     string          `json:"request_id"`
	ClientIP      string          `json:"client_ip"`
	Findings      []rules.Finding `json:"findings"`
	TotalFindings int             `json:"total_findings"`
	CacheHit      bool            `json:"cache_hit"`
	ProcessingMS  float64         `json:"processing_ms"`
}

// FileJobEvent reports one completed file scrub
type FileJobEvent struct {
	RequestID      string  `json:"request_id"`
	ClientIP       string  `json:"client_ip"`
	Mode           string  `json:"mode"`
	InputPath      string  `json:"input_path"`
	OutputPath     string  `json:"output_path"`
	LinesProcessed int64   `json:"lines_processed"`
	BytesWritten   int64   `json:"bytes_written"`
	RepairedLines  int64   `json:"repaired_lines"`
	Chunks         int     `json:"chunks"`
	Workers        int     `json:"workers"`
	DurationMS     float64 `json:"duration_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalScrubs      int64  `json:"total_scrubs"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
	MemoryUsage      string `json:"memory_usage"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest narrows which event types a client receives. An empty
// list means everything.
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
