package activity

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MergeResult reports what Merge did with an incoming record.
type MergeResult int

const (
	MergeInserted MergeResult = iota
	MergeApplied
	MergeStale
	MergeInvalid
)

func (r MergeResult) String() string {
	switch r {
	case MergeInserted:
		return "inserted"
	case MergeApplied:
		return "applied"
	case MergeStale:
		return "stale"
	default:
		return "invalid"
	}
}

// ChangeKind classifies a store change delivered to watchers.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
)

// Change is emitted to watchers whenever the store contents change.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Activity Activity   `json:"activity"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLockCompleted pins a completed status so later updates cannot change it.
func WithLockCompleted(lock bool) StoreOption {
	return func(s *Store) {
		s.lockCompleted = lock
	}
}

// WithStoreLogger sets the logger used for stale-update diagnostics.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the in-memory source of truth for one user's activities.
// All mutation goes through Add and Merge.
type Store struct {
	mu            sync.RWMutex
	items         map[string]Activity
	watchers      map[int]chan Change
	nextWatcher   int
	lockCompleted bool
	logger        *slog.Logger
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		items:    make(map[string]Activity),
		watchers: make(map[int]chan Change),
		logger:   slog.New(slog.DiscardHandler),
		now:      defaultClock,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Now returns the store clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Add inserts a new activity immediately and returns its id.
// A missing id and creation timestamp are assigned here.
func (s *Store) Add(a Activity) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	if a.LastUpdateTime.IsZero() {
		a.LastUpdateTime = a.Timestamp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[a.ID]; exists {
		return "", fmt.Errorf("%w: duplicate id %s", ErrInvalidInput, a.ID)
	}
	s.items[a.ID] = a.Clone()
	s.broadcastLocked(Change{Kind: ChangeInserted, Activity: a.Clone()})
	return a.ID, nil
}

// Merge applies a local update or remote change. Unknown ids are inserted.
// Known ids are replaced only when a.LastUpdateTime is strictly newer than
// the stored value; otherwise the update is dropped as stale.
func (s *Store) Merge(a Activity) MergeResult {
	if a.ID == "" {
		return MergeInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[a.ID]
	if !ok {
		if a.LastUpdateTime.IsZero() {
			a.LastUpdateTime = a.Timestamp
		}
		s.items[a.ID] = a.Clone()
		s.broadcastLocked(Change{Kind: ChangeInserted, Activity: a.Clone()})
		return MergeInserted
	}

	if !cur.LastUpdateTime.IsZero() && !a.LastUpdateTime.After(cur.LastUpdateTime) {
		s.logger.Debug("dropping stale activity update",
			"activity_id", a.ID,
			"stored_update_time", cur.LastUpdateTime,
			"incoming_update_time", a.LastUpdateTime,
		)
		return MergeStale
	}

	next := a.Clone()
	if !cur.Timestamp.IsZero() {
		next.Timestamp = cur.Timestamp
	}
	if s.lockCompleted && cur.Status == StatusCompleted && next.Status != StatusCompleted {
		s.logger.Debug("keeping completed status", "activity_id", a.ID, "incoming_status", next.Status)
		next.Status = StatusCompleted
	}
	s.items[a.ID] = next
	s.broadcastLocked(Change{Kind: ChangeUpdated, Activity: next.Clone()})
	return MergeApplied
}

// Get returns a copy of the activity with the given id.
func (s *Store) Get(id string) (Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return Activity{}, false
	}
	return a.Clone(), true
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of stored activities, dismissed included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns copies of all activities, newest first.
func (s *Store) List() []Activity {
	s.mu.RLock()
	out := make([]Activity, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Watch registers a watcher. The returned cancel func must be called to release it.
// A watcher that falls a full buffer behind is dropped and its channel closed;
// the consumer should re-read List and watch again.
func (s *Store) Watch(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
}

// Watchers returns the number of registered watchers.
func (s *Store) Watchers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

func (s *Store) broadcastLocked(c Change) {
	for id, ch := range s.watchers {
		select {
		case ch <- c:
		default:
			s.logger.Warn("activity watcher fell behind, disconnecting", "watcher", id, "activity_id", c.Activity.ID)
			delete(s.watchers, id)
			close(ch)
		}
	}
}
