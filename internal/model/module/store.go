package module

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownModule is returned when a module id is not registered.
var ErrUnknownModule = errors.New("unknown module")

// Store exposes module lookup for handlers and the engine.
type Store interface {
	List() []Definition
	FindByID(id string) (Definition, bool)
}

// Profile overrides the tunable thresholds of one module.
type Profile struct {
	MinExchangesForExtraction int
	MaxExchanges              int
}

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Definition
	order []string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied modules.
func NewMemoryStore(items []Definition) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Definition, len(items))}
	for _, item := range items {
		if _, dup := s.items[item.ID]; !dup {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = item
	}
	return s
}

// List returns the modules in registration order.
func (s *MemoryStore) List() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Definition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// FindByID looks up a module by identifier.
func (s *MemoryStore) FindByID(id string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// ApplyProfiles overrides thresholds and re-validates the affected policies.
// Unknown module ids are reported as an error; nothing is applied then.
func (s *MemoryStore) ApplyProfiles(profiles map[string]Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updated := make(map[string]Definition, len(ids))
	for _, id := range ids {
		def, ok := s.items[id]
		if !ok {
			return fmt.Errorf("%w: profile for %q", ErrUnknownModule, id)
		}
		profile := profiles[id]
		if profile.MinExchangesForExtraction > 0 {
			def.Policy.MinExchangesForExtraction = profile.MinExchangesForExtraction
		}
		if profile.MaxExchanges > 0 {
			def.Policy.MaxExchanges = profile.MaxExchanges
		}
		if err := def.Policy.Validate(); err != nil {
			return fmt.Errorf("module %s: %w", id, err)
		}
		updated[id] = def
	}
	for id, def := range updated {
		s.items[id] = def
	}
	return nil
}
