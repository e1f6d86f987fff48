package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	coordinatorAgent   = "Coordinator"
	coordinatorAgentID = "coordinator"

	notifyFailedDetail = "Failed to process your request. Please try again."
)

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	Repository    Repository
	Notifier      Notifier
	Classifier    Classifier
	Observer      Observer
	LockCompleted bool
	Logger        *slog.Logger
	// Clock overrides the store time source; used by tests.
	Clock func() time.Time
}

// Session is the per-user activity context: the in-memory store plus the
// persistence and notification paths that feed it. It is created at sign-in
// and closed at sign-out.
type Session struct {
	user          User
	store         *Store
	repo          Repository
	notifier      Notifier
	classifier    Classifier
	observer      Observer
	lockCompleted bool
	logger        *slog.Logger

	mu             sync.Mutex
	notices        []Notice
	noticeWatchers map[int]chan Notice
	nextWatcher    int
	creating       map[string]chan struct{}
	closing        bool

	wg sync.WaitGroup
}

// NewSession creates a session for an authenticated user.
func NewSession(user User, cfg SessionConfig) (*Session, error) {
	if strings.TrimSpace(user.ID) == "" {
		return nil, ErrAuthRequired
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("%w: repository is required", ErrInvalidInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("user_id", user.ID)
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	storeOpts := []StoreOption{WithLockCompleted(cfg.LockCompleted), WithStoreLogger(logger)}
	if cfg.Clock != nil {
		storeOpts = append(storeOpts, WithClock(cfg.Clock))
	}

	return &Session{
		user:           user,
		store:          NewStore(storeOpts...),
		repo:           cfg.Repository,
		notifier:       cfg.Notifier,
		classifier:     cfg.Classifier,
		observer:       observer,
		lockCompleted:  cfg.LockCompleted,
		logger:         logger,
		noticeWatchers: make(map[int]chan Notice),
		creating:       make(map[string]chan struct{}),
	}, nil
}

// User returns the session owner.
func (s *Session) User() User {
	return s.user
}

// Store exposes the session store for the realtime reconciler.
func (s *Session) Store() *Store {
	return s.store
}

// Load performs the initial fetch of the user's persisted activities.
func (s *Session) Load(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	list, err := s.repo.List(ctx, s.user.ID, ListOptions{IncludeDismissed: true})
	if err != nil {
		return &PersistenceError{Op: "list", Err: err}
	}
	for _, a := range list {
		s.store.Merge(a)
	}
	s.logger.Debug("loaded activities", "count", len(list))
	return nil
}

// Add inserts the activity optimistically and returns its id right away.
// Persistence and the outbound notification run in the background.
func (s *Session) Add(ctx context.Context, d Draft) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if err := ValidateDraft(d); err != nil {
		return "", err
	}

	a := newActivity(d)
	id, err := s.store.Add(a)
	if err != nil {
		return "", err
	}

	source := d.Source
	if source == "" {
		source = "dashboard"
	}
	command := d.Command
	if command == "" {
		command = d.Content
	}
	s.observer.ActivityCreated(source)

	done := make(chan struct{})
	s.mu.Lock()
	s.creating[id] = done
	s.mu.Unlock()

	s.wg.Add(1)
	go s.persistAndNotify(context.WithoutCancel(ctx), id, done, Notification{
		User:             s.user,
		Command:          command,
		Source:           source,
		SuggestedAgentID: d.SuggestedAgentID,
	})
	return id, nil
}

// Command is a free-text request typed into one of the dashboard widgets.
type Command struct {
	Text        string
	Attachments []Attachment
	// AgentID and AgentName target a specific agent; the coordinator is used when empty.
	AgentID   string
	AgentName string
	Source    string
}

// SubmitCommand records a pending coordinator message for the command and
// forwards it to the workflow engine.
func (s *Session) SubmitCommand(ctx context.Context, cmd Command) (string, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" && len(cmd.Attachments) == 0 {
		return "", ErrInvalidInput
	}

	content := text
	if n := len(cmd.Attachments); n > 0 {
		summary := fmt.Sprintf("%d file attached", n)
		if n > 1 {
			summary = fmt.Sprintf("%d files attached", n)
		}
		if text == "" {
			content = summary
		} else {
			content = fmt.Sprintf("%s (%s)", text, summary)
		}
	}

	agentName, agentID := coordinatorAgent, coordinatorAgentID
	if cmd.AgentID != "" {
		agentID = cmd.AgentID
		agentName = cmd.AgentName
		if agentName == "" {
			agentName = cmd.AgentID
		}
	}
	source := cmd.Source
	if source == "" {
		source = coordinatorAgentID
	}

	var suggested string
	if s.classifier != nil && text != "" {
		suggested, _ = s.classifier.Classify(text)
	}

	return s.Add(ctx, Draft{
		Type:             TypeMessage,
		Agent:            agentName,
		AgentID:          agentID,
		Content:          content,
		Status:           StatusPending,
		Attachments:      cmd.Attachments,
		Command:          text,
		Source:           source,
		SuggestedAgentID: suggested,
	})
}

func (s *Session) persistAndNotify(ctx context.Context, id string, done chan struct{}, n Notification) {
	defer s.wg.Done()

	a, ok := s.store.Get(id)
	if !ok {
		close(done)
		return
	}

	err := s.repo.Create(ctx, s.user.ID, &a)
	s.mu.Lock()
	delete(s.creating, id)
	s.mu.Unlock()
	close(done)

	if err != nil {
		perr := &PersistenceError{Op: "create", Err: err}
		s.logger.Error("failed to save activity", "activity_id", id, "error", perr)
		s.observer.PersistFailed("create")
		s.flagUnsynced(id)
		s.addNotice(NoticeError, "Error", "Failed to save activity", id)
		return
	}
	s.logger.Debug("activity saved", "activity_id", id, "type", a.Type, "agent_id", a.AgentID)

	if s.notifier == nil {
		return
	}
	n.Activity = a
	if err := s.notifier.Notify(ctx, n, s); err != nil {
		reason := "transport"
		var nerr *NotificationError
		if errors.As(err, &nerr) && nerr.StatusCode != 0 {
			reason = fmt.Sprintf("status_%d", nerr.StatusCode)
		}
		s.logger.Warn("failed to notify workflow", "activity_id", id, "error", err)
		s.observer.NotifyFailed(reason)
		if uerr := s.update(ctx, id, Patch{
			Status:          Ptr(StatusError),
			DetailedContent: Ptr(notifyFailedDetail),
		}); uerr != nil {
			s.logger.Error("failed to record notification failure", "activity_id", id, "error", uerr)
		}
		s.addNotice(NoticeError, "Error", "Failed to process your request", id)
	}
}

// Update applies a partial update locally, then persists it.
func (s *Session) Update(ctx context.Context, id string, patch Patch) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ValidatePatch(patch); err != nil {
		return err
	}
	return s.update(ctx, id, patch)
}

func (s *Session) update(ctx context.Context, id string, patch Patch) error {
	var next Activity
	for attempt := 0; ; attempt++ {
		cur, ok := s.store.Get(id)
		if !ok {
			return ErrActivityNotFound
		}
		if err := ValidateTransition(cur.Status, patch.Status, s.lockCompleted); err != nil {
			return err
		}
		next = patch.Apply(cur)
		next.LastUpdateTime = s.nextUpdateTime(cur)
		if s.store.Merge(next) != MergeStale {
			break
		}
		// A concurrent merge moved the record forward; rebase on it.
		if attempt >= 2 {
			return fmt.Errorf("%w: %s", ErrUpdateConflict, id)
		}
	}

	if err := s.awaitCreate(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, s.user.ID, id, patch, next.LastUpdateTime); err != nil {
		perr := &PersistenceError{Op: "update", Err: err}
		s.logger.Error("failed to update activity", "activity_id", id, "error", perr)
		s.observer.PersistFailed("update")
		s.addNotice(NoticeError, "Error", "Failed to update activity", id)
		return perr
	}
	return nil
}

// Dismiss hides an activity. It is never removed.
func (s *Session) Dismiss(ctx context.Context, id string) error {
	return s.Update(ctx, id, Patch{Dismissed: Ptr(true)})
}

// MarkRead marks an activity as read.
func (s *Session) MarkRead(ctx context.Context, id string) error {
	return s.Update(ctx, id, Patch{Read: Ptr(true)})
}

// MarkUnread marks an activity as unread.
func (s *Session) MarkUnread(ctx context.Context, id string) error {
	return s.Update(ctx, id, Patch{Read: Ptr(false)})
}

// MarkAllRead marks every activity read, locally then remotely.
func (s *Session) MarkAllRead(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	at := s.bulkLocal(func(a Activity) bool { return !a.Read }, Patch{Read: Ptr(true)})
	if _, err := s.repo.MarkAllRead(ctx, s.user.ID, at); err != nil {
		s.observer.PersistFailed("mark_all_read")
		s.addNotice(NoticeError, "Error", "Failed to mark activities as read", "")
		return &PersistenceError{Op: "mark_all_read", Err: err}
	}
	return nil
}

// ClearAll dismisses every activity, locally then remotely.
func (s *Session) ClearAll(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	at := s.bulkLocal(func(a Activity) bool { return !a.Dismissed }, Patch{Dismissed: Ptr(true)})
	if _, err := s.repo.DismissAll(ctx, s.user.ID, at); err != nil {
		s.observer.PersistFailed("dismiss_all")
		s.addNotice(NoticeError, "Error", "Failed to clear activities", "")
		return &PersistenceError{Op: "dismiss_all", Err: err}
	}
	return nil
}

func (s *Session) bulkLocal(match func(Activity) bool, patch Patch) time.Time {
	at := s.store.Now()
	for _, cur := range s.store.List() {
		if !match(cur) {
			continue
		}
		next := patch.Apply(cur)
		next.LastUpdateTime = at
		if !at.After(cur.LastUpdateTime) {
			next.LastUpdateTime = cur.LastUpdateTime.Add(time.Microsecond)
		}
		s.store.Merge(next)
	}
	return at
}

// Activities returns the filtered live view, newest first.
func (s *Session) Activities(f Filter) []Activity {
	return f.Apply(s.store.List())
}

// Get returns a single activity from the store.
func (s *Session) Get(id string) (Activity, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return Activity{}, ErrActivityNotFound
	}
	return a, nil
}

// Notices returns the recorded user-visible notices, oldest first.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notice(nil), s.notices...)
}

// WatchNotices registers a notice watcher. Call cancel to release it.
func (s *Session) WatchNotices(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Notice, buffer)
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.noticeWatchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.noticeWatchers[id]; ok {
				delete(s.noticeWatchers, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Wait blocks until background persistence and notification calls finish.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close rejects new calls, waits for in-flight work and releases watchers.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.noticeWatchers {
		delete(s.noticeWatchers, id)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) awaitCreate(ctx context.Context, id string) error {
	s.mu.Lock()
	done := s.creating[id]
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) nextUpdateTime(cur Activity) time.Time {
	t := s.store.Now()
	if !t.After(cur.LastUpdateTime) {
		t = cur.LastUpdateTime.Add(time.Microsecond)
	}
	return t
}

func (s *Session) flagUnsynced(id string) {
	cur, ok := s.store.Get(id)
	if !ok {
		return
	}
	cur.SyncFailed = true
	cur.LastUpdateTime = s.nextUpdateTime(cur)
	s.store.Merge(cur)
}

func (s *Session) addNotice(level, title, description, activityID string) {
	n := Notice{
		Level:       level,
		Title:       title,
		Description: description,
		ActivityID:  activityID,
		CreatedAt:   s.store.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	for id, ch := range s.noticeWatchers {
		select {
		case ch <- n:
		default:
			s.logger.Warn("notice watcher is full, dropping notice", "watcher", id)
		}
	}
}
