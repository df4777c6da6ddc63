// Package audit provides an append-only audit trail for deltagraph write
// transactions and HTTP access events.
//
// Node/edge writes and delta-matrix synchronizations (LogWrite,
// LogSynchronize) and authentication/authorization decisions (LogAuth) can
// be recorded here as structured JSON-lines events. No graph-store write
// path in this module calls LogWrite or LogSynchronize. The log is append-only and
// never rewritten in place, so it can be replayed or audited independently
// of the delta matrices it describes.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	// Authentication/authorization events, logged by pkg/server and
	// pkg/auth.Authenticator's user-account lifecycle.
	EventLogin          EventType = "LOGIN"
	EventLogout         EventType = "LOGOUT"
	EventLoginFailed    EventType = "LOGIN_FAILED"
	EventAccessDenied   EventType = "ACCESS_DENIED"
	EventPasswordChange EventType = "PASSWORD_CHANGE"
	EventUserCreate     EventType = "USER_CREATE"
	EventUserDisable    EventType = "USER_DISABLE"
	EventUserEnable     EventType = "USER_ENABLE"
	EventUserUnlock     EventType = "USER_UNLOCK"
	EventUserDelete     EventType = "USER_DELETE"
	EventRoleChange     EventType = "ROLE_CHANGE"

	// Write-transaction events, recorded with LogWrite and LogSynchronize.
	EventNodeCreate  EventType = "NODE_CREATE"
	EventNodeDelete  EventType = "NODE_DELETE"
	EventEdgeCreate  EventType = "EDGE_CREATE"
	EventEdgeDelete  EventType = "EDGE_DELETE"
	EventSynchronize EventType = "SYNCHRONIZE"
	EventRollback    EventType = "ROLLBACK"

	// System events.
	EventConfigChange EventType = "CONFIG_CHANGE"
)

// Event is one immutable audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Resource identifies what the event acted on: "node", "edge",
	// "label:<name>", "relation:<name>", "delta_matrix" for synchronize
	// events, or "session" for auth events.
	Resource   string `json:"resource,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Action     string `json:"action,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`

	// TransactionID ties a batch of write events together: it is the
	// transaction id the caller passed to LogWrite/LogSynchronize.
	TransactionID string `json:"transaction_id,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Logger appends Events to a JSON-lines file. A zero-value Config (or
// Config.Enabled == false) produces a no-op logger so callers never need
// to nil-check before logging.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	config   Config
	sequence uint64
	closed   bool

	alertCallback func(Event)
}

// Config holds audit logger settings.
type Config struct {
	Enabled bool
	// LogPath is the JSON-lines file events are appended to.
	LogPath string
	// SyncWrites forces fsync after every write; slower, but guarantees
	// an event is durable before Log returns.
	SyncWrites bool
	// AlertOnEvents triggers alertCallback for matching event types.
	AlertOnEvents []EventType
}

// DefaultConfig returns sensible defaults for audit logging.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LogPath:       "./logs/audit.log",
		SyncWrites:    false,
		AlertOnEvents: []EventType{EventAccessDenied, EventLoginFailed},
	}
}

// NewLogger opens (creating if necessary) the log file named by
// config.LogPath in append mode. If config.Enabled is false, NewLogger
// returns a Logger whose Log calls are no-ops.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	dir := filepath.Dir(config.LogPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}

	return &Logger{writer: file, file: file, config: config}, nil
}

// NewLoggerWithWriter creates a logger writing to an arbitrary io.Writer,
// for tests that want to inspect output without touching the filesystem.
func NewLoggerWithWriter(writer io.Writer, config Config) *Logger {
	return &Logger{writer: writer, config: config}
}

// SetAlertCallback registers fn to run synchronously whenever a logged
// event's Type appears in config.AlertOnEvents.
func (l *Logger) SetAlertCallback(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alertCallback = fn
}

// Log appends event to the audit trail, filling in Timestamp and ID when
// unset. It is a no-op if the logger is disabled.
func (l *Logger) Log(event Event) error {
	if !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("audit logger is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		l.sequence++
		event.ID = fmt.Sprintf("audit-%d-%d", event.Timestamp.UnixNano(), l.sequence)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if l.config.SyncWrites && l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("syncing audit log: %w", err)
		}
	}

	if l.alertCallback != nil {
		for _, alertType := range l.config.AlertOnEvents {
			if event.Type == alertType {
				l.alertCallback(event)
				break
			}
		}
	}

	return nil
}

// LogAuth logs an authentication or authorization decision.
func (l *Logger) LogAuth(eventType EventType, userID, username, ip, userAgent string, success bool, reason string) error {
	return l.Log(Event{
		Type:      eventType,
		UserID:    userID,
		Username:  username,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		Reason:    reason,
		Resource:  "session",
	})
}

// LogWrite logs a single graph mutation (node/edge/label/relation) applied
// within a write transaction.
func (l *Logger) LogWrite(transactionID string, eventType EventType, resource, resourceID string, success bool, reason string) error {
	return l.Log(Event{
		Type:          eventType,
		TransactionID: transactionID,
		Resource:      resource,
		ResourceID:    resourceID,
		Action:        string(eventType),
		Success:       success,
		Reason:        reason,
	})
}

// LogSynchronize logs a delta-matrix synchronize call, recording how many
// cells were folded from M+/M- into M.
func (l *Logger) LogSynchronize(transactionID string, additions, deletions int, success bool, reason string) error {
	return l.Log(Event{
		Type:          EventSynchronize,
		TransactionID: transactionID,
		Resource:      "delta_matrix",
		Success:       success,
		Reason:        reason,
		Metadata: map[string]string{
			"additions": fmt.Sprintf("%d", additions),
			"deletions": fmt.Sprintf("%d", deletions),
		},
	})
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Query selects a subset of logged events.
type Query struct {
	StartTime     time.Time
	EndTime       time.Time
	EventTypes    []EventType
	UserID        string
	TransactionID string
	Success       *bool
	Limit         int
	Offset        int
}

// QueryResult holds the outcome of a Query.
type QueryResult struct {
	Events     []Event
	TotalCount int
	HasMore    bool
}

// Reader reads and filters events from an audit log file written by Logger.
type Reader struct {
	path string
}

// NewReader creates a Reader over the JSON-lines file at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Query scans the audit log file and returns events matching q. Malformed
// lines are skipped rather than aborting the scan.
func (r *Reader) Query(q Query) (*QueryResult, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &QueryResult{Events: []Event{}}, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()

	var events []Event
	decoder := json.NewDecoder(file)

	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			continue
		}

		if !q.StartTime.IsZero() && event.Timestamp.Before(q.StartTime) {
			continue
		}
		if !q.EndTime.IsZero() && event.Timestamp.After(q.EndTime) {
			continue
		}
		if len(q.EventTypes) > 0 && !containsEventType(q.EventTypes, event.Type) {
			continue
		}
		if q.UserID != "" && event.UserID != q.UserID {
			continue
		}
		if q.TransactionID != "" && event.TransactionID != q.TransactionID {
			continue
		}
		if q.Success != nil && event.Success != *q.Success {
			continue
		}

		events = append(events, event)
	}

	total := len(events)
	if q.Offset > 0 {
		if q.Offset >= len(events) {
			events = nil
		} else {
			events = events[q.Offset:]
		}
	}
	if q.Limit > 0 && len(events) > q.Limit {
		events = events[:q.Limit]
	}

	return &QueryResult{
		Events:     events,
		TotalCount: total,
		HasMore:    q.Offset+len(events) < total,
	}, nil
}

func containsEventType(types []EventType, t EventType) bool {
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}

// Summary aggregates event counts over a time window, for a transaction
// audit report (failed logins, denied access, synchronize/rollback counts).
type Summary struct {
	Period          string    `json:"period"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalEvents     int       `json:"total_events"`
	FailedLogins    int       `json:"failed_logins"`
	AccessDenied    int       `json:"access_denied"`
	Writes          int       `json:"writes"`
	Synchronizes    int       `json:"synchronizes"`
	Rollbacks       int       `json:"rollbacks"`
	UniqueUsers     int       `json:"unique_users"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Summarize builds a Summary of events between start and end.
func (r *Reader) Summarize(start, end time.Time, periodName string) (*Summary, error) {
	result, err := r.Query(Query{StartTime: start, EndTime: end})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Period:      periodName,
		StartTime:   start,
		EndTime:     end,
		TotalEvents: result.TotalCount,
		GeneratedAt: time.Now().UTC(),
	}

	users := make(map[string]bool)
	for _, event := range result.Events {
		if event.UserID != "" {
			users[event.UserID] = true
		}
		switch event.Type {
		case EventLoginFailed:
			summary.FailedLogins++
		case EventAccessDenied:
			summary.AccessDenied++
		case EventNodeCreate, EventNodeDelete, EventEdgeCreate, EventEdgeDelete:
			summary.Writes++
		case EventSynchronize:
			summary.Synchronizes++
		case EventRollback:
			summary.Rollbacks++
		}
	}
	summary.UniqueUsers = len(users)

	return summary, nil
}
