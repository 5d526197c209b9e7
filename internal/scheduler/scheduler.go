// Package scheduler drives repeating discovery cycles with single-flight
// execution: a trigger landing while a cycle is in progress is dropped, not
// queued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/kkkkikiki/codecast/internal/metrics"
)

// CycleRunner is one full discovery pass. It must not be entered
// concurrently; the scheduler guarantees that.
type CycleRunner interface {
	RunCycle(ctx context.Context)
}

// Scheduler fires the cycle runner on a fixed interval plus once shortly
// after start. The clock is injectable so tests never wait on wall time.
type Scheduler struct {
	runner       CycleRunner
	interval     time.Duration
	startupDelay time.Duration
	clock        clockwork.Clock

	inFlight atomic.Bool
	cron     gocron.Scheduler
}

// New creates a scheduler. A nil clock means the real one.
func New(runner CycleRunner, interval, startupDelay time.Duration, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:       runner,
		interval:     interval,
		startupDelay: startupDelay,
		clock:        clock,
	}
}

// Start launches the interval timer and the delayed startup run. The
// provided context is handed to every cycle; cancelling it stops the
// startup run but never an already-running cycle body.
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.TriggerNow(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule discovery job: %w", err)
	}

	s.cron = cron
	cron.Start()
	log.Printf("[Scheduler] discovery scheduled every %s", s.interval)

	// One immediate run shortly after process start.
	go func() {
		select {
		case <-s.clock.After(s.startupDelay):
			log.Println("[Scheduler] running initial discovery")
			s.TriggerNow(ctx)
		case <-ctx.Done():
		}
	}()

	return nil
}

// TriggerNow runs one cycle unless another is already in flight, in which
// case the trigger is dropped and false is returned. Used by both the timer
// and the operator surface.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Println("[Scheduler] cycle already in flight, dropping trigger")
		metrics.CyclesSkipped.Inc()
		return false
	}
	defer s.inFlight.Store(false)

	s.runner.RunCycle(ctx)
	return true
}

// TriggerAsync starts one cycle in the background unless another is already
// in flight, in which case the trigger is dropped. Returns immediately;
// used by the operator surface so a slow cycle does not hold the request
// open.
func (s *Scheduler) TriggerAsync(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Println("[Scheduler] cycle already in flight, dropping trigger")
		metrics.CyclesSkipped.Inc()
		return false
	}

	go func() {
		defer s.inFlight.Store(false)
		s.runner.RunCycle(ctx)
	}()
	return true
}

// Stop shuts the interval timer down. A cycle already in flight runs to
// completion.
func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut scheduler down: %w", err)
	}
	return nil
}
