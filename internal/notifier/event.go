// Package notifier decouples phase-transition announcements from direct
// subscriber coupling. Delivery is local-first: in-process subscribers are
// always notified synchronously, and an external broker is used best-effort
// when configured and reachable.
package notifier

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Well-known event types published by the engine
const (
	TypeWorkflowPhaseChanged = "workflow.phase.changed"
	TypeServiceHealthChanged = "service.health.changed"
)

// Event is a notification about a state change in the system
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Source        string                 `json:"source"`
	Data          map[string]interface{} `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// NewEvent creates an event with an auto-generated ID and timestamp
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        generateID(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewWorkflowPhaseEvent builds the event published on every phase
// transition. The workflow ID doubles as the correlation ID so consumers
// can order events for a single journey.
func NewWorkflowPhaseEvent(workflowID, phase, status string, data map[string]interface{}) *Event {
	payload := map[string]interface{}{
		"workflow_id": workflowID,
		"phase":       phase,
		"status":      status,
	}
	for k, v := range data {
		payload[k] = v
	}

	evt := NewEvent(TypeWorkflowPhaseChanged, "workflow-engine", payload)
	evt.CorrelationID = workflowID
	return evt
}

// NewServiceHealthEvent builds a service health change event
func NewServiceHealthEvent(serviceID, status string) *Event {
	return NewEvent(TypeServiceHealthChanged, "service-registry", map[string]interface{}{
		"service_id": serviceID,
		"status":     status,
	})
}

// MatchPattern reports whether an event type matches a subscription
// pattern. Supported patterns: exact match, the universal wildcard "*",
// and a single trailing-segment wildcard such as "workflow.phase.*".
func MatchPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == eventType {
		return true
	}
	if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(eventType, pattern[:len(pattern)-2]) {
		return true
	}
	return false
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
