package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var stamp = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_AppendAndRead(t *testing.T) {
	store := NewMemoryStore(0, nil)

	for _, typ := range []string{ReconciliationStartedEvent, CohortIdentifiedEvent, ReconciliationCompletedEvent} {
		if _, err := store.Append("C-1", typ, nil, stamp); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	if _, err := store.Append("C-2", ReconciliationStartedEvent, nil, stamp); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	events := store.Read("C-1", 1)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Version != i+1 {
			t.Errorf("Expected version %d, got %d", i+1, e.Version)
		}
		if e.Stream != "C-1" || !e.At.Equal(stamp) {
			t.Errorf("Unexpected event %+v", e)
		}
	}

	if tail := store.Read("C-1", 3); len(tail) != 1 || tail[0].Type != ReconciliationCompletedEvent {
		t.Errorf("Expected only the completion event, got %+v", tail)
	}
	if none := store.Read("C-1", 9); len(none) != 0 {
		t.Errorf("Expected no events past the end, got %d", len(none))
	}
	if none := store.Read("absent", 1); len(none) != 0 {
		t.Errorf("Expected no events for unknown stream, got %d", len(none))
	}

	streams := store.Streams()
	if len(streams) != 2 || streams[0] != "C-1" || streams[1] != "C-2" {
		t.Errorf("Expected [C-1 C-2], got %v", streams)
	}
}

func TestMemoryStore_EmptyStream(t *testing.T) {
	_, err := NewMemoryStore(0, nil).Append("", ReconciliationStartedEvent, nil, stamp)
	if !errors.Is(err, ErrEmptyStream) {
		t.Fatalf("Expected ErrEmptyStream, got %v", err)
	}
}

func TestMemoryStore_Retention(t *testing.T) {
	store := NewMemoryStore(2, nil)
	for i := 0; i < 5; i++ {
		store.Append("C-1", ChainBuiltEvent, i, stamp)
	}

	events := store.Read("C-1", 0)
	if len(events) != 2 {
		t.Fatalf("Expected 2 retained events, got %d", len(events))
	}
	if events[0].Version != 4 || events[1].Version != 5 {
		t.Errorf("Expected versions 4 and 5, got %d and %d", events[0].Version, events[1].Version)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore(0, nil)

	var mu sync.Mutex
	var seen []string
	cancel := store.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
	}, ReturnMatchedEvent)

	store.Append("C-1", ReturnMatchedEvent, nil, stamp)
	store.Append("C-1", ChainBuiltEvent, nil, stamp)
	cancel()
	store.Append("C-1", ReturnMatchedEvent, nil, stamp)

	if len(seen) != 1 || seen[0] != ReturnMatchedEvent {
		t.Errorf("Expected one return.matched delivery, got %v", seen)
	}
}

func TestMemoryStore_HandlerPanicIsContained(t *testing.T) {
	store := NewMemoryStore(0, nil)
	store.Subscribe(func(Event) { panic("boom") })

	if _, err := store.Append("C-1", ChainBuiltEvent, nil, stamp); err != nil {
		t.Fatalf("Expected append to succeed, got %v", err)
	}
	if len(store.Read("C-1", 1)) != 1 {
		t.Error("Expected the event to be stored")
	}
}

func TestLogCompletions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := NewMemoryStore(0, nil)
	LogCompletions(store, zap.New(core))

	store.Append("C-1", ReconciliationStartedEvent, ReconciliationStarted{CustomerID: "C-1"}, stamp)
	store.Append("C-1", ReconciliationCompletedEvent, ReconciliationCompleted{CustomerID: "C-1", Cohorts: 2}, stamp)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["cohorts"] != int64(2) {
		t.Errorf("Expected cohorts=2, got %v", entries[0].ContextMap()["cohorts"])
	}
}

func TestLastRun(t *testing.T) {
	events := []Event{
		{Type: ReconciliationStartedEvent, Version: 1},
		{Type: ReconciliationCompletedEvent, Version: 2},
		{Type: ReconciliationStartedEvent, Version: 3},
		{Type: CohortIdentifiedEvent, Version: 4},
	}
	last := LastRun(events)
	if len(last) != 2 || last[0].Version != 3 {
		t.Errorf("Expected the run starting at version 3, got %+v", last)
	}
	if counts := CountByType(events); counts[ReconciliationStartedEvent] != 2 {
		t.Errorf("Expected 2 starts, got %d", counts[ReconciliationStartedEvent])
	}
}
