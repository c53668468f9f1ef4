// Package events contains the event contracts pushed to WebSocket clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Dataset lifecycle messages
	MessageTypeDatasetUploaded MessageType = "dataset:uploaded"
	MessageTypeDatasetCleaned  MessageType = "dataset:cleaned"
	MessageTypeDatasetDeleted  MessageType = "dataset:deleted"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Request trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// DatasetUploaded is the payload of dataset:uploaded.
type DatasetUploaded struct {
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	Rows          int    `json:"rows"`
	Columns       int    `json:"columns"`
	DuplicateRows int    `json:"duplicate_rows"`
}

// DatasetCleaned is the payload of dataset:cleaned.
type DatasetCleaned struct {
	OriginalFilename string `json:"original_filename"`
	CleanedFilename  string `json:"cleaned_filename"`
	OriginalRows     int    `json:"original_rows"`
	CleanedRows      int    `json:"cleaned_rows"`
	ColumnsRemoved   int    `json:"columns_removed"`
	Operations       int    `json:"operations"`
	Skipped          int    `json:"skipped"`
}

// DatasetDeleted is the payload of dataset:deleted.
type DatasetDeleted struct {
	Filename string `json:"filename"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// SystemStatus is the payload of system:status, sent to each client on connect.
type SystemStatus struct {
	Status  string `json:"status"` // healthy|degraded|unhealthy
	Version string `json:"version"`
	Clients int    `json:"clients"`
}
