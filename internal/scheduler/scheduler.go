// Package scheduler drives the per-minute irrigation cycle.
//
// Each cycle starts on a period boundary of the wall clock and fires four
// steps at fixed offsets: solar refresh, weather refresh, balance
// computation and the relay decision. Steps run concurrently. The balance
// step additionally waits for the same cycle's weather refresh and the
// decision waits for the solar refresh and the balance step, bounded by the
// end of the cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"garden_irrigation/internal/clock"
	"garden_irrigation/internal/logger"
)

// Step names, also used in log lines.
const (
	StepSolar    = "solar_refresh"
	StepWeather  = "weather_refresh"
	StepBalance  = "balance_compute"
	StepDecision = "relay_decision"
)

// Task is one step of a cycle.
type Task func(ctx context.Context) error

// Tasks are the four steps of a cycle. Nil tasks are treated as no-ops.
type Tasks struct {
	Solar    Task
	Weather  Task
	Balance  Task
	Decision Task
}

// Timing holds the cycle period and the offset of every step from the
// cycle start.
type Timing struct {
	Period   time.Duration
	Solar    time.Duration
	Weather  time.Duration
	Balance  time.Duration
	Decision time.Duration
}

// DefaultTiming is one cycle per minute with steps at :00, :20, :35 and :40.
func DefaultTiming() Timing {
	return Timing{
		Period:   time.Minute,
		Solar:    0,
		Weather:  20 * time.Second,
		Balance:  35 * time.Second,
		Decision: 40 * time.Second,
	}
}

// Validate reports offsets that would push a step past its cycle.
func (t Timing) Validate() error {
	if t.Period <= 0 {
		return fmt.Errorf("scheduler period must be positive, got %s", t.Period)
	}
	for name, d := range map[string]time.Duration{
		StepSolar: t.Solar, StepWeather: t.Weather, StepBalance: t.Balance, StepDecision: t.Decision,
	} {
		if d < 0 || d >= t.Period {
			return fmt.Errorf("%s offset %s outside cycle period %s", name, d, t.Period)
		}
	}
	return nil
}

// Scheduler runs cycles until its context is canceled.
type Scheduler struct {
	tasks  Tasks
	timing Timing
	clock  clock.Clock
	log    *logger.Logger

	wg     sync.WaitGroup
	cycles int
	mu     sync.Mutex
}

// New returns a scheduler. clk may be nil for the wall clock.
func New(tasks Tasks, timing Timing, clk clock.Clock, log *logger.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Wall
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{tasks: tasks, timing: timing, clock: clk, log: log}
}

// Cycles returns the number of cycles started so far.
func (s *Scheduler) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// NextBoundary returns the first period boundary strictly after now.
func NextBoundary(now time.Time, period time.Duration) time.Time {
	return now.Truncate(period).Add(period)
}

// Run sleeps until each period boundary and starts a cycle there. When ctx
// is canceled it stops scheduling, lets pending steps observe the
// cancellation and waits for in-flight steps before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.timing.Validate(); err != nil {
		return err
	}
	defer s.wg.Wait()

	for {
		now := s.clock.Now()
		next := NextBoundary(now, s.timing.Period)
		t := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			s.log.Infow("scheduler_stopped", "cycles", s.Cycles())
			return nil
		case <-t.C():
		}
		s.startCycle(ctx, next)
	}
}

// startCycle launches the four steps of the cycle beginning at start.
func (s *Scheduler) startCycle(ctx context.Context, start time.Time) {
	s.mu.Lock()
	s.cycles++
	n := s.cycles
	s.mu.Unlock()

	deadline := start.Add(s.timing.Period)
	solarDone := make(chan struct{})
	weatherDone := make(chan struct{})
	balanceDone := make(chan struct{})

	s.log.Debugw("cycle_started", "cycle", n, "at", start)

	s.launch(ctx, n, StepSolar, start.Add(s.timing.Solar), deadline, s.tasks.Solar, solarDone)
	s.launch(ctx, n, StepWeather, start.Add(s.timing.Weather), deadline, s.tasks.Weather, weatherDone)
	s.launch(ctx, n, StepBalance, start.Add(s.timing.Balance), deadline, s.tasks.Balance, balanceDone, weatherDone)
	s.launch(ctx, n, StepDecision, start.Add(s.timing.Decision), deadline, s.tasks.Decision, nil, solarDone, balanceDone)
}

// launch runs task at fireAt once every channel in after is closed. done,
// when non-nil, is closed when the step finishes or is skipped.
func (s *Scheduler) launch(ctx context.Context, cycle int, name string, fireAt, deadline time.Time,
	task Task, done chan struct{}, after ...<-chan struct{}) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if done != nil {
			defer close(done)
		}

		if !s.sleepUntil(ctx, fireAt) {
			return
		}
		if !s.await(ctx, deadline, after) {
			s.log.Warnw("step_skipped", "cycle", cycle, "step", name, "reason", "dependency not finished before cycle end")
			return
		}
		s.run(ctx, cycle, name, task)
	}()
}

func (s *Scheduler) sleepUntil(ctx context.Context, at time.Time) bool {
	d := at.Sub(s.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}

// await waits for every channel in deps, giving up at deadline.
func (s *Scheduler) await(ctx context.Context, deadline time.Time, deps []<-chan struct{}) bool {
	if allClosed(deps) {
		return ctx.Err() == nil
	}
	d := deadline.Sub(s.clock.Now())
	if d <= 0 {
		return false
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	for _, dep := range deps {
		select {
		case <-dep:
		case <-ctx.Done():
			return false
		case <-t.C():
			return false
		}
	}
	return true
}

func allClosed(deps []<-chan struct{}) bool {
	for _, dep := range deps {
		select {
		case <-dep:
		default:
			return false
		}
	}
	return true
}

// run executes task, converting panics and errors into log lines so a
// faulty step never stops the scheduler.
func (s *Scheduler) run(ctx context.Context, cycle int, name string, task Task) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("step_panicked", "cycle", cycle, "step", name, "panic", r, "at", s.clock.Now())
		}
	}()

	began := s.clock.Now()
	if err := task(ctx); err != nil {
		s.log.Errorw("step_failed", "cycle", cycle, "step", name, "err", err)
		return
	}
	s.log.Debugw("step_finished", "cycle", cycle, "step", name, "took", s.clock.Now().Sub(began))
}
