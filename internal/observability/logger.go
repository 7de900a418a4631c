package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeAgentCall     EventType = "agent_call"
	EventTypeAgentFallback EventType = "agent_fallback"
	EventTypeStep          EventType = "step"
	EventTypeStoreWrite    EventType = "store_write"
	EventTypeValidation    EventType = "validation"
	EventTypeNotify        EventType = "notify"
	EventTypeHeartbeat     EventType = "heartbeat"
	EventTypeLLM           EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type       EventType `json:"type"`
	BusinessID string    `json:"business_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Data       any       `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger(dir string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	return &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join(dir, "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// NewLoggerTo writes events to w and keeps the LLM transcript under dir.
func NewLoggerTo(w io.Writer, dir string) *Logger {
	l := NewLogger(dir)
	l.out = w
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogAgentCall(businessID, runID, role, agentID string, elapsed time.Duration) {
	l.Log(Event{
		Type:       EventTypeAgentCall,
		BusinessID: businessID,
		RunID:      runID,
		Data: map[string]any{
			"role":       role,
			"agent_id":   agentID,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogFallback(businessID, runID, role, reason string) {
	l.Log(Event{
		Type:       EventTypeAgentFallback,
		BusinessID: businessID,
		RunID:      runID,
		Data: map[string]string{
			"role":   role,
			"reason": reason,
		},
	})
}

func (l *Logger) LogStep(businessID, runID, step string, structured bool) {
	l.Log(Event{
		Type:       EventTypeStep,
		BusinessID: businessID,
		RunID:      runID,
		Data: map[string]any{
			"step":       step,
			"structured": structured,
		},
	})
}

func (l *Logger) LogStoreWrite(businessID, runID, docID, version string) {
	l.Log(Event{
		Type:       EventTypeStoreWrite,
		BusinessID: businessID,
		RunID:      runID,
		Data: map[string]string{
			"doc_id":  docID,
			"version": version,
		},
	})
}

func (l *Logger) LogValidation(businessID, runID, missionID string, approved bool, progress int) {
	l.Log(Event{
		Type:       EventTypeValidation,
		BusinessID: businessID,
		RunID:      runID,
		Data: map[string]any{
			"mission_id": missionID,
			"approved":   approved,
			"progress":   progress,
		},
	})
}

func (l *Logger) LogNotify(businessID, event string, err error) {
	data := map[string]string{"event": event, "status": "sent"}
	if err != nil {
		data["status"] = "failed"
		data["error"] = err.Error()
	}
	l.Log(Event{
		Type:       EventTypeNotify,
		BusinessID: businessID,
		Data:       data,
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(agentID, prompt, response string) {
	l.Log(Event{
		Type: EventTypeLLM,
		Data: map[string]any{
			"agent_id": agentID,
			"prompt":   prompt,
			"response": response,
		},
	})
}
