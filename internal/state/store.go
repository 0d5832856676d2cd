// Package state holds the user's persisted dashboard settings in memory,
// saves every change to a key-value backend and pushes change events to
// subscribers.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rookie/internal/store"
)

// Event types.
const (
	EventSet    = "set"
	EventDelete = "delete"
)

// Event describes one change.
type Event struct {
	Type  string          `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"` // set only
}

// persistTimeout bounds one backend write.
const persistTimeout = 5 * time.Second

// Store holds JSON values by key with write-through persistence and pub/sub.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	kv     store.KV
	log    *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// Open creates a Store and loads every persisted value from kv. Values that
// are not valid JSON are skipped.
func Open(ctx context.Context, kv store.KV, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		values: make(map[string]json.RawMessage),
		kv:     kv,
		log:    logger.With("component", "state"),
		subs:   make(map[int]chan Event),
	}

	loaded, err := kv.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	for k, v := range loaded {
		if !json.Valid(v) {
			s.log.Warn("skipping invalid state value", "key", k)
			continue
		}
		s.values[k] = json.RawMessage(v)
	}
	s.log.Info("loaded state", "keys", len(s.values))
	return s, nil
}

// Get decodes the value for key into v. It reports false when the key is
// unset.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// Snapshot returns a copy of every value.
func (s *Store) Snapshot() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Set stores value as JSON, persists it and broadcasts the change. The
// in-memory value is kept even if the backend write fails.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	s.mu.Lock()
	s.values[key] = data
	err = s.persist(func(ctx context.Context) error { return s.kv.Put(ctx, key, data) })
	s.mu.Unlock()

	s.broadcast(Event{Type: EventSet, Key: key, Value: data})
	return err
}

// Update atomically decodes the current value of key into cur (left as is
// when unset or undecodable), calls fn and stores what it returns. An
// error from fn leaves the value unchanged.
func (s *Store) Update(key string, cur any, fn func(exists bool) (any, error)) error {
	s.mu.Lock()
	raw, ok := s.values[key]
	if ok {
		if err := json.Unmarshal(raw, cur); err != nil {
			s.log.Warn("discarding undecodable state value", "key", key, "error", err)
			ok = false
		}
	}
	next, err := fn(ok)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	s.values[key] = data
	err = s.persist(func(ctx context.Context) error { return s.kv.Put(ctx, key, data) })
	s.mu.Unlock()

	s.broadcast(Event{Type: EventSet, Key: key, Value: data})
	return err
}

// Delete removes key, persists the removal and broadcasts the change.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	err := s.persist(func(ctx context.Context) error { return s.kv.Delete(ctx, key) })
	s.mu.Unlock()

	s.broadcast(Event{Type: EventDelete, Key: key})
	return err
}

// persist runs one backend write. Must be called with mu held so writes
// reach the backend in the order they were applied.
func (s *Store) persist(write func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		s.log.Error("persisting state", "error", err)
		return fmt.Errorf("persisting state: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (s *Store) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
