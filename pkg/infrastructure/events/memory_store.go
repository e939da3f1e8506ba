package events

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetention bounds each stream to roughly the last few runs of a large clinic
const DefaultRetention = 5000

type subscription struct {
	id      int
	types   map[string]bool
	handler Handler
}

// MemoryStore keeps audit streams in memory. Each stream holds at most retention events;
// the oldest are dropped first and versions keep counting.
type MemoryStore struct {
	mu        sync.RWMutex
	streams   map[string][]Event
	versions  map[string]int
	subs      []subscription
	nextSubID int
	retention int
	logger    *zap.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. retention <= 0 uses DefaultRetention.
func NewMemoryStore(retention int, logger *zap.Logger) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		streams:   make(map[string][]Event),
		versions:  make(map[string]int),
		retention: retention,
		logger:    logger,
	}
}

// Append stores an event and hands it to matching subscribers on the caller's goroutine
func (s *MemoryStore) Append(stream, eventType string, data any, at time.Time) (Event, error) {
	if stream == "" {
		return Event{}, ErrEmptyStream
	}

	s.mu.Lock()
	s.versions[stream]++
	event := Event{
		Type:    eventType,
		Stream:  stream,
		Version: s.versions[stream],
		At:      at,
		Data:    data,
	}
	events := append(s.streams[stream], event)
	if over := len(events) - s.retention; over > 0 {
		events = append([]Event(nil), events[over:]...)
	}
	s.streams[stream] = events

	var handlers []Handler
	for _, sub := range s.subs {
		if len(sub.types) == 0 || sub.types[eventType] {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		s.dispatch(h, event)
	}
	return event, nil
}

func (s *MemoryStore) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit handler panicked", zap.String("type", event.Type), zap.Any("panic", r))
		}
	}()
	h(event)
}

// Read returns a copy of the retained events of stream with version >= fromVersion
func (s *MemoryStore) Read(stream string, fromVersion int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.streams[stream]
	i := sort.Search(len(events), func(i int) bool { return events[i].Version >= fromVersion })
	return append(make([]Event, 0, len(events)-i), events[i:]...)
}

// Streams lists stream ids in lexical order
func (s *MemoryStore) Streams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe registers handler for the given event types, or for all types when none are
// given. The returned func removes the subscription.
func (s *MemoryStore) Subscribe(handler Handler, eventTypes ...string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	sub := subscription{id: s.nextSubID, handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}
	s.subs = append(s.subs, sub)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == sub.id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// LogCompletions subscribes a handler that logs each finished run at Info
func LogCompletions(store *MemoryStore, logger *zap.Logger) func() {
	return store.Subscribe(func(e Event) {
		done, ok := e.Data.(ReconciliationCompleted)
		if !ok {
			return
		}
		logger.Info("reconciliation recorded",
			zap.String("customer_id", done.CustomerID),
			zap.Int("version", e.Version),
			zap.Int("cohorts", done.Cohorts),
			zap.Int("validated_chains", done.ValidatedChains),
			zap.Int("orphan_chains", done.OrphanChains),
			zap.Int("unassigned", done.Unassigned),
		)
	}, ReconciliationCompletedEvent)
}
