package intake

import (
	"errors"
	"sync"
)

const dismissedKey = "donation_button_dismissed"

var ErrDismissed = errors.New("donation button was dismissed")

type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FloatingButton is the always-visible donate entry point. Dismissing it is
// remembered in the store until Reset.
type FloatingButton struct {
	store   KeyValueStore
	newFlow func() (*Flow, error)
}

func NewFloatingButton(store KeyValueStore, newFlow func() (*Flow, error)) *FloatingButton {
	return &FloatingButton{store: store, newFlow: newFlow}
}

func (b *FloatingButton) Visible() bool {
	v, ok := b.store.Get(dismissedKey)
	return !ok || v != "true"
}

func (b *FloatingButton) Dismiss() {
	b.store.Set(dismissedKey, "true")
}

func (b *FloatingButton) Reset() {
	b.store.Delete(dismissedKey)
}

// Open starts a fresh flow. A dismissed button cannot be opened.
func (b *FloatingButton) Open() (*Flow, error) {
	if !b.Visible() {
		return nil, ErrDismissed
	}
	return b.newFlow()
}
