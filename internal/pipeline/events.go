package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

// EventType represents the type of pipeline event
type EventType string

const (
	EventDocumentRejected EventType = "document.rejected"
	EventRankFinished     EventType = "rank.finished"
	EventProcessingFailed EventType = "processing.failed"
)

// DocumentEvent is one notification from a rank to the bus subscribers
type DocumentEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	RunID      string                 `json:"run_id"`
	Rank       int                    `json:"rank"`
	Stage      string                 `json:"stage,omitempty"`
	StageIndex int                    `json:"stage_index,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Document   *document.Document     `json:"document,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewDocumentEvent creates a new event for doc, which may be nil
func NewDocumentEvent(eventType EventType, doc *document.Document) *DocumentEvent {
	return &DocumentEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Document:  doc,
		Metadata:  make(map[string]interface{}),
	}
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return "evt_" + uuid.New().String()
}
