package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// DefaultMockDelay is how long the simulator waits before completing an activity.
const DefaultMockDelay = 2 * time.Second

// Simulator stands in for the workflow engine when no webhook is configured:
// after a fixed delay it marks the activity completed with placeholder text.
// It is a demo fallback.
type Simulator struct {
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewSimulator creates a simulator. A non-positive delay uses DefaultMockDelay.
func NewSimulator(delay time.Duration, logger *slog.Logger) *Simulator {
	if delay <= 0 {
		delay = DefaultMockDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulator{delay: delay, logger: logger, timers: make(map[*time.Timer]struct{})}
}

// SimulatedDetail is the placeholder detailed content written for command.
func SimulatedDetail(command string) string {
	return fmt.Sprintf("Simulated response for: \"%s\"", command)
}

// Notify schedules the simulated completion and returns immediately.
func (s *Simulator) Notify(_ context.Context, n activity.Notification, sink activity.ResultSink) error {
	if sink == nil {
		return fmt.Errorf("simulator: no result sink for activity %s", n.Activity.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return &activity.NotificationError{Err: fmt.Errorf("simulator stopped")}
	}

	id := n.Activity.ID
	patch := activity.Patch{
		Status:          activity.Ptr(activity.StatusCompleted),
		DetailedContent: activity.Ptr(SimulatedDetail(n.Command)),
	}
	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()

		if err := sink.Update(context.Background(), id, patch); err != nil {
			s.logger.Warn("simulated response not applied", "activity_id", id, "error", err)
			return
		}
		s.logger.Debug("simulated response applied", "activity_id", id)
	})
	s.timers[t] = struct{}{}
	return nil
}

// Pending returns the number of scheduled completions that have not fired.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending completions and waits for running ones.
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	for t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, t)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
