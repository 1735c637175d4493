// Package audit records the security-relevant protocol trail as structured
// JSON events. Callback rejections are logged with distinct actions per
// taxonomy kind so that replay attempts, commitment mismatches, and proof
// failures can be told apart during forensics.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the category of the audit event.
type EventType string

const (
	EventAdmission EventType = "ADMISSION"
	EventMutation  EventType = "MUTATION"
	EventCallback  EventType = "CALLBACK"
	EventSecurity  EventType = "SECURITY"
)

// Callback-path actions. SECURITY events use these three; a log pipeline
// alerting on EventSecurity sees every suspicious callback.
const (
	ActionReplayAttempt = "callback.replay_attempt"
	ActionStateMismatch = "callback.state_mismatch"
	ActionInvalidProof  = "callback.invalid_proof"
)

// Event is one structured audit record.
type Event struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor,omitempty"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	RequestID uint64         `json:"request_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(eventType EventType, action, actor string, requestID uint64, metadata map[string]any)
}

// logger writes one JSON event per line to a configurable writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger writes to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(eventType EventType, action, actor string, requestID uint64, metadata map[string]any) {
	event := Event{
		ID:        uuid.New().String(),
		Actor:     actor,
		Type:      eventType,
		Action:    action,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.writer)
	_ = enc.Encode(event)
}

// Nop discards all events.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Record(EventType, string, string, uint64, map[string]any) {}
