package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/realtime"
	"golang.org/x/sync/singleflight"
)

// Gauge receives the number of signed-in sessions. Nil means no-op.
type Gauge interface {
	SessionsActive(n int)
}

// Config holds the collaborators shared by every session.
type Config struct {
	Repository       activity.Repository
	Notifier         activity.Notifier
	Classifier       activity.Classifier
	Observer         activity.Observer
	Source           realtime.Source
	RealtimeObserver realtime.Observer
	RetryDelay       time.Duration
	LockCompleted    bool
	Gauge            Gauge
	Logger           *slog.Logger
}

type entry struct {
	session    *activity.Session
	reconciler *realtime.Reconciler
	createdAt  time.Time
}

// Manager owns the per-user sessions: it builds one at sign-in, starts its
// realtime reconciler and tears both down at sign-out.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	flight singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*entry),
	}
}

// SignIn returns the user's session, creating and loading it on first use.
// Concurrent sign-ins for the same user share one session, so the load does
// not inherit the cancellation of whichever caller happened to start it.
func (m *Manager) SignIn(ctx context.Context, user activity.User) (*activity.Session, error) {
	if strings.TrimSpace(user.ID) == "" {
		return nil, activity.ErrAuthRequired
	}
	if sess, err := m.Get(user.ID); err == nil {
		return sess, nil
	}

	v, err, _ := m.flight.Do(user.ID, func() (any, error) {
		if sess, err := m.Get(user.ID); err == nil {
			return sess, nil
		}
		return m.open(context.WithoutCancel(ctx), user)
	})
	if err != nil {
		return nil, err
	}
	return v.(*activity.Session), nil
}

func (m *Manager) open(ctx context.Context, user activity.User) (*activity.Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	sess, err := activity.NewSession(user, activity.SessionConfig{
		Repository:    m.cfg.Repository,
		Notifier:      m.cfg.Notifier,
		Classifier:    m.cfg.Classifier,
		Observer:      m.cfg.Observer,
		LockCompleted: m.cfg.LockCompleted,
		Logger:        m.logger,
	})
	if err != nil {
		return nil, err
	}

	var rec *realtime.Reconciler
	if m.cfg.Source != nil {
		rec = realtime.NewReconciler(user.ID, sess.Store(), realtime.ReconcilerConfig{
			Source:     m.cfg.Source,
			Backfill:   m.cfg.Repository,
			RetryDelay: m.cfg.RetryDelay,
			Observer:   m.cfg.RealtimeObserver,
			Logger:     m.logger,
		})
		rec.Start(m.ctx)
	}

	if err := sess.Load(ctx); err != nil {
		if rec != nil {
			rec.Stop()
		}
		sess.Close()
		return nil, fmt.Errorf("loading session: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if rec != nil {
			rec.Stop()
		}
		sess.Close()
		return nil, ErrManagerClosed
	}
	m.sessions[user.ID] = &entry{session: sess, reconciler: rec, createdAt: time.Now().UTC()}
	n := len(m.sessions)
	m.mu.Unlock()

	m.setGauge(n)
	m.logger.Info("session opened", "user_id", user.ID, "activities", sess.Store().Len())
	return sess, nil
}

// Get returns the active session for userID.
func (m *Manager) Get(userID string) (*activity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.session, nil
}

// SignOut stops the user's reconciler and closes the session.
func (m *Manager) SignOut(userID string) error {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	m.closeEntry(e)
	m.setGauge(n)
	m.logger.Info("session closed", "user_id", userID)
	return nil
}

// List describes the active sessions ordered by user id.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for id, e := range m.sessions {
		out = append(out, Info{
			UserID:     id,
			Email:      e.session.User().Email,
			Realtime:   e.reconciler != nil && e.reconciler.Running(),
			CreatedAt:  e.createdAt,
			Activities: e.session.Store().Len(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signs every user out and rejects new sign-ins.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		entries = append(entries, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.cancel()
	for _, e := range entries {
		m.closeEntry(e)
	}
	m.setGauge(0)
}

func (m *Manager) closeEntry(e *entry) {
	if e.reconciler != nil {
		e.reconciler.Stop()
	}
	e.session.Close()
}

func (m *Manager) setGauge(n int) {
	if m.cfg.Gauge != nil {
		m.cfg.Gauge.SessionsActive(n)
	}
}
