package relengine

import (
	"context"
	"log"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Monitor Scheduler — externally driven per-user ticks
// ──────────────────────────────────────────────

// TickFn re-evaluates one user. It must be stateless: every invocation
// loads, mutates and persists a single context and leaves nothing
// behind on failure.
type TickFn func(ctx context.Context, userID string) error

// MonitorScheduler drives periodic re-evaluation of enrolled users.
// It replaces the per-user self-rescheduling timer pattern: one poll
// loop invokes a stateless tick for each enrolled user, so a failing
// tick cannot leak timers or wedge a user's schedule.
//
// Usage:
//
//	scheduler := relengine.NewMonitorScheduler(time.Minute, engine.MonitorTick)
//	scheduler.Enroll("user_001")
//	scheduler.Start()
//	defer scheduler.Stop()
type MonitorScheduler struct {
	Interval time.Duration
	Tick     TickFn

	mu       sync.RWMutex
	enrolled map[string]bool
	stopCh   chan struct{}
	running  bool
}

// NewMonitorScheduler creates a scheduler. It does not start polling
// until Start is called.
func NewMonitorScheduler(interval time.Duration, tick TickFn) *MonitorScheduler {
	return &MonitorScheduler{
		Interval: interval,
		Tick:     tick,
		enrolled: make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Enroll adds a user to the monitoring set.
func (s *MonitorScheduler) Enroll(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrolled[userID] = true
}

// Withdraw removes a user from the monitoring set.
func (s *MonitorScheduler) Withdraw(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrolled, userID)
}

// Enrolled returns the current monitoring set.
func (s *MonitorScheduler) Enrolled() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.enrolled))
	for uid := range s.enrolled {
		users = append(users, uid)
	}
	return users
}

// Start launches the background poll loop. Non-blocking.
func (s *MonitorScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	go s.pollLoop()
	log.Printf("[MonitorScheduler] Started (interval=%s)", s.Interval)
}

// Stop halts the background poll loop.
func (s *MonitorScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Println("[MonitorScheduler] Stopped")
}

func (s *MonitorScheduler) pollLoop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce ticks every enrolled user immediately. Exposed so hosts with
// their own schedulers can drive monitoring without the poll loop.
func (s *MonitorScheduler) RunOnce(ctx context.Context) {
	for _, userID := range s.Enrolled() {
		s.runTick(ctx, userID)
	}
}

func (s *MonitorScheduler) runTick(ctx context.Context, userID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[MonitorScheduler] Tick panic | user=%s panic=%v", userID, r)
		}
	}()
	if s.Tick == nil {
		return
	}
	if err := s.Tick(ctx, userID); err != nil {
		log.Printf("[MonitorScheduler] Tick failed | user=%s error=%v", userID, err)
	}
}

// MonitorTick is the engine's default tick: recompute credibility (the
// recency factor decays stale relationships), re-evaluate the tier and
// persist. No message is appended; the tick only refreshes derived
// state.
func (e *RelationshipEngine) MonitorTick(ctx context.Context, userID string) error {
	_, err := e.EvaluateUser(ctx, userID)
	return err
}
