package queue

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/talent-screener/internal/cvfile"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInFlight          = errors.New("item is in flight")
	ErrIllegalTransition = errors.New("illegal transition")
)

// Store holds the ordered queue. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     []*Item
	observers []func(Event)

	now   func() time.Time
	newID func() string
}

func NewStore() *Store {
	return &Store{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "upload-" + uuid.NewString() },
	}
}

// OnChange registers an observer. Observers run outside the store lock and
// may be called from several goroutines at once.
func (s *Store) OnChange(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Enqueue appends one pending item per file and returns them in order.
// Files are never deduplicated.
func (s *Store) Enqueue(files ...*cvfile.File) []Item {
	s.mu.Lock()
	now := s.now()
	added := make([]Item, 0, len(files))
	for _, f := range files {
		if f == nil {
			continue
		}
		item := &Item{
			ID:        s.newID(),
			File:      f,
			Status:    StatusPending,
			Message:   MessageQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.items = append(s.items, item)
		added = append(added, *item)
	}
	observers := s.observers
	s.mu.Unlock()

	for _, item := range added {
		notify(observers, Event{Kind: EventAdded, Item: item})
	}

	return added
}

// Update merges c into the item with the given id.
//
// ErrNotFound is returned for unknown ids; callers reporting asynchronous
// results treat it as a no-op. Status changes must follow the lifecycle edges.
// A terminal item is never modified: repeating its terminal status is accepted
// silently, anything else is ErrIllegalTransition. CandidateID is set at most once.
func (s *Store) Update(id string, c Change) error {
	s.mu.Lock()
	item := s.find(id)
	if item == nil {
		s.mu.Unlock()
		return ErrNotFound
	}

	if err := validate(item, c); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errNoop) {
			return nil
		}
		return err
	}

	if c.Status != "" {
		item.Status = c.Status
	}
	if c.Message != "" {
		item.Message = c.Message
	}
	if c.CandidateID != "" {
		item.CandidateID = c.CandidateID
	}
	if c.Result != nil {
		item.Result = c.Result
	}
	item.UpdatedAt = s.now()

	updated := *item
	observers := s.observers
	s.mu.Unlock()

	notify(observers, Event{Kind: EventUpdated, Item: updated})

	return nil
}

var errNoop = errors.New("noop")

func validate(item *Item, c Change) error {
	if item.Status.Terminal() {
		if c.Status == item.Status {
			return errNoop
		}
		return fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, item.Status)
	}

	next := item.Status
	if c.Status != "" && c.Status != item.Status {
		if !CanTransition(item.Status, c.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, item.Status, c.Status)
		}
		next = c.Status
	}

	if c.CandidateID != "" && item.CandidateID != "" && c.CandidateID != item.CandidateID {
		return fmt.Errorf("%w: candidate id already set to %q", ErrIllegalTransition, item.CandidateID)
	}

	if next == StatusPolling && item.CandidateID == "" && c.CandidateID == "" {
		return fmt.Errorf("%w: polling requires a candidate id", ErrIllegalTransition)
	}

	if c.Result != nil && next != StatusSuccess {
		return fmt.Errorf("%w: result is only stored on success", ErrIllegalTransition)
	}

	return nil
}

// Remove deletes the item and reports whether it was present.
// Removing an in-flight item is allowed here; late results for it are dropped
// because Update no longer finds the id.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	idx := s.index(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := *s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	observers := s.observers
	s.mu.Unlock()

	notify(observers, Event{Kind: EventRemoved, Item: removed})

	return true
}

// Clear empties the queue unconditionally and returns how many items were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	removed := s.items
	s.items = nil
	observers := s.observers
	s.mu.Unlock()

	for _, item := range removed {
		notify(observers, Event{Kind: EventRemoved, Item: *item})
	}

	return len(removed)
}

// RemoveSettled deletes the item unless a backend operation is still
// reporting on it, in which case it returns ErrInFlight.
func (s *Store) RemoveSettled(id string) error {
	s.mu.Lock()
	idx := s.index(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if st := s.items[idx].Status; st.InFlight() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrInFlight, id, st)
	}
	removed := *s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	observers := s.observers
	s.mu.Unlock()

	notify(observers, Event{Kind: EventRemoved, Item: removed})

	return nil
}

// ClearSettled empties the queue only when no item is in flight.
func (s *Store) ClearSettled() (int, error) {
	s.mu.Lock()
	for _, item := range s.items {
		if item.Status.InFlight() {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %s is %s", ErrInFlight, item.ID, item.Status)
		}
	}
	removed := s.items
	s.items = nil
	observers := s.observers
	s.mu.Unlock()

	for _, item := range removed {
		notify(observers, Event{Kind: EventRemoved, Item: *item})
	}

	return len(removed), nil
}

// Get returns a copy of the item.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.find(id)
	if item == nil {
		return Item{}, false
	}
	return *item, true
}

// Snapshot returns copies of all items in insertion order.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// ByStatus returns copies of the items currently in status st, in order.
func (s *Store) ByStatus(st Status) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, item := range s.items {
		if item.Status == st {
			out = append(out, *item)
		}
	}
	return out
}

// Count returns the number of items in any of the given statuses,
// or the queue length when none are given.
func (s *Store) Count(statuses ...Status) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return len(s.items)
	}

	n := 0
	for _, item := range s.items {
		if slices.Contains(statuses, item.Status) {
			n++
		}
	}
	return n
}

// InFlight reports whether any item is uploading or polling.
func (s *Store) InFlight() bool {
	return s.Count(StatusUploading, StatusPolling) > 0
}

func (s *Store) find(id string) *Item {
	if idx := s.index(id); idx >= 0 {
		return s.items[idx]
	}
	return nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.items, func(item *Item) bool { return item.ID == id })
}

func notify(observers []func(Event), e Event) {
	for _, fn := range observers {
		fn(e)
	}
}
