package audit

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func mustLog(t *testing.T, l *Logger, e Event) {
	t.Helper()
	if err := l.Log(e); err != nil {
		t.Fatalf("Log: %v", err)
	}
}

func TestLogAssignsIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, DefaultConfig())

	mustLog(t, l, Event{Type: EventNodeCreate, Resource: "node", ResourceID: "7", Success: true})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding logged event: %v", err)
	}
	if decoded.ID == "" {
		t.Error("expected non-empty ID")
	}
	if decoded.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
	if decoded.Type != EventNodeCreate || decoded.ResourceID != "7" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
}

func TestLogDisabledIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Enabled = false
	l := NewLoggerWithWriter(&buf, cfg)

	mustLog(t, l, Event{Type: EventNodeCreate})

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLogAfterCloseFails(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, DefaultConfig())
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Log(Event{Type: EventNodeCreate}); err == nil {
		t.Error("expected error logging after Close")
	}
}

func TestAlertCallbackFiresForConfiguredEventTypes(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.AlertOnEvents = []EventType{EventAccessDenied}
	l := NewLoggerWithWriter(&buf, cfg)

	var fired []Event
	l.SetAlertCallback(func(e Event) { fired = append(fired, e) })

	mustLog(t, l, Event{Type: EventNodeCreate, Success: true})
	mustLog(t, l, Event{Type: EventAccessDenied, Success: false})

	if len(fired) != 1 || fired[0].Type != EventAccessDenied {
		t.Errorf("expected exactly one EventAccessDenied alert, got %+v", fired)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Enabled: true, LogPath: filepath.Join(dir, "audit.log"), SyncWrites: true}

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	mustLog(t, l, Event{Type: EventLogin, UserID: "u1", Success: true})

	reader := NewReader(cfg.LogPath)
	result, err := reader.Query(Query{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Events[0].UserID != "u1" {
		t.Errorf("UserID = %q, want u1", result.Events[0].UserID)
	}
}

func TestReaderQueryMissingFile(t *testing.T) {
	reader := NewReader(filepath.Join(t.TempDir(), "missing.log"))
	result, err := reader.Query(Query{})
	if err != nil {
		t.Fatalf("Query on missing file: %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", result.TotalCount)
	}
}

func TestReaderQueryFiltersByTypeAndTransaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l, err := NewLogger(Config{Enabled: true, LogPath: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	mustLog(t, l, Event{Type: EventNodeCreate, TransactionID: "tx1"})
	mustLog(t, l, Event{Type: EventEdgeCreate, TransactionID: "tx1"})
	mustLog(t, l, Event{Type: EventSynchronize, TransactionID: "tx2"})

	reader := NewReader(path)
	result, err := reader.Query(Query{TransactionID: "tx1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", result.TotalCount)
	}
}

func TestLogWriteAndLogSynchronize(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, DefaultConfig())

	if err := l.LogWrite("tx1", EventNodeCreate, "node", "3", true, ""); err != nil {
		t.Fatalf("LogWrite: %v", err)
	}
	if err := l.LogSynchronize("tx1", 5, 2, true, ""); err != nil {
		t.Fatalf("LogSynchronize: %v", err)
	}

	reader := bytes.NewReader(buf.Bytes())
	dec := json.NewDecoder(reader)
	var first, second Event
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decoding first event: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decoding second event: %v", err)
	}
	if first.TransactionID != "tx1" || first.ResourceID != "3" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if second.Type != EventSynchronize || second.Metadata["additions"] != "5" || second.Metadata["deletions"] != "2" {
		t.Errorf("unexpected second event: %+v", second)
	}
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l, err := NewLogger(Config{Enabled: true, LogPath: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	mustLog(t, l, Event{Type: EventLoginFailed, UserID: "u1"})
	mustLog(t, l, Event{Type: EventAccessDenied, UserID: "u2"})
	mustLog(t, l, Event{Type: EventNodeCreate, UserID: "u1"})
	mustLog(t, l, Event{Type: EventSynchronize})

	reader := NewReader(path)
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	summary, err := reader.Summarize(start, end, "test period")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.FailedLogins != 1 || summary.AccessDenied != 1 || summary.Writes != 1 || summary.Synchronizes != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.UniqueUsers != 2 {
		t.Errorf("UniqueUsers = %d, want 2", summary.UniqueUsers)
	}
}
