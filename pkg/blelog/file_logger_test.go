package blelog

import (
	"path/filepath"
	"testing"
	"time"
)

func writeEvents(t *testing.T, path string, events []Event) {
	t.Helper()

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestFileLogger_WriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.blog")

	conn := uint8(1)
	handle := uint16(0x10)
	events := []Event{
		{
			Timestamp: time.Now(),
			ScanID:    "pass-1",
			Direction: DirectionOut,
			Layer:     LayerCommand,
			Category:  CategoryMessage,
			Command:   &CommandEvent{Name: "attclient_read_by_handle", Connection: &conn, Handle: &handle},
		},
		{
			Timestamp:   time.Now(),
			ScanID:      "pass-1",
			Direction:   DirectionIn,
			Layer:       LayerEngine,
			Category:    CategoryState,
			PeerAddr:    "00:07:80:2e:1f:a3",
			StateChange: &StateChangeEvent{OldState: "CONNECTING", NewState: "READING_VENDOR"},
		},
	}
	writeEvents(t, path, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	defer reader.Close()

	got, err := reader.All()
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
	if got[0].Command == nil || got[0].Command.Name != "attclient_read_by_handle" {
		t.Errorf("first event Command = %+v", got[0].Command)
	}
	if got[0].Command.Handle == nil || *got[0].Command.Handle != 0x10 {
		t.Errorf("first event Handle = %v, want 0x10", got[0].Command.Handle)
	}
	if got[1].StateChange == nil || got[1].StateChange.NewState != "READING_VENDOR" {
		t.Errorf("second event StateChange = %+v", got[1].StateChange)
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.blog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// must not panic, must not write
	logger.Log(Event{ScanID: "late"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	defer reader.Close()

	got, err := reader.All()
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("read %d events after close, want 0", len(got))
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.blog")

	writeEvents(t, path, []Event{
		{Timestamp: time.Now(), ScanID: "a", Layer: LayerLink, Category: CategoryMessage},
		{Timestamp: time.Now(), ScanID: "b", Layer: LayerEngine, Category: CategoryState},
		{Timestamp: time.Now(), ScanID: "a", Layer: LayerEngine, Category: CategoryError,
			Error: &ErrorEventData{Message: "boom"}},
	})

	layer := LayerEngine
	reader, err := NewFilteredReader(path, Filter{ScanID: "a", Layer: &layer})
	if err != nil {
		t.Fatalf("NewFilteredReader() error: %v", err)
	}
	defer reader.Close()

	got, err := reader.All()
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("read %d events, want 1", len(got))
	}
	if got[0].Error == nil || got[0].Error.Message != "boom" {
		t.Errorf("Error = %+v, want boom", got[0].Error)
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b countingLogger

	ml := NewMultiLogger(&a, &b)
	ml.Log(Event{})
	ml.Log(Event{})

	if a.n != 2 || b.n != 2 {
		t.Errorf("counts = %d, %d, want 2, 2", a.n, b.n)
	}
}

type countingLogger struct{ n int }

func (c *countingLogger) Log(Event) { c.n++ }
