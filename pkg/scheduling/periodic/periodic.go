package periodic

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/common/validation"
	"github.com/vnykmshr/goloop/pkg/eventloop"
)

// ErrStopped is returned when scheduling on a stopped Scheduler.
var ErrStopped = fmt.Errorf("periodic: %w", gferrors.ErrClosed)

// Entry describes a scheduled coroutine.
type Entry struct {
	ID         string
	Expression string        // cron expression, empty for interval entries
	Interval   time.Duration // zero for cron entries
	NextRun    time.Time
	Runs       int
	Skipped    int
	Running    bool
}

// Options tune a single entry.
type Options struct {
	// MaxRuns limits the number of runs (0 = unlimited).
	MaxRuns int

	// OnError is called on the loop when a run fails.
	OnError func(id string, err error)

	// OnSkip is called on the loop when a tick is skipped because the
	// previous run is still in flight.
	OnSkip func(id string)
}

// Config holds scheduler configuration.
type Config struct {
	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location

	// Logger receives failed and skipped runs. If nil, logging is discarded.
	Logger *slog.Logger
}

type entry struct {
	id       string
	expr     string
	interval time.Duration
	schedule cron.Schedule
	coro     eventloop.Coroutine
	opts     Options

	handle  *eventloop.Handle
	next    time.Time
	runs    int
	skipped int
	running *eventloop.Task
}

// Scheduler runs coroutines on an event loop at fixed intervals or on cron
// schedules. A tick that finds the previous run of the same entry still in
// flight is skipped.
type Scheduler struct {
	loop     *eventloop.Loop
	location *time.Location
	logger   *slog.Logger
	parser   cron.Parser

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

// New creates a scheduler with default configuration.
func New(loop *eventloop.Loop) *Scheduler {
	return NewWithConfig(loop, Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(loop *eventloop.Loop, config Config) *Scheduler {
	location := config.Location
	if location == nil {
		location = time.Local
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scheduler{
		loop:     loop,
		location: location,
		logger:   logger,
		// five fields, an optional leading seconds field, or a descriptor
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: make(map[string]*entry),
	}
}

// ScheduleRepeating runs coro every interval, starting one interval from now.
func (s *Scheduler) ScheduleRepeating(id string, coro eventloop.Coroutine, interval time.Duration, opts ...Options) error {
	if err := validation.ValidatePositiveDuration("periodic", "interval", interval); err != nil {
		return err
	}
	return s.add(&entry{
		id:       id,
		interval: interval,
		schedule: every(interval),
		coro:     coro,
		opts:     firstOptions(opts),
	})
}

// ScheduleCron runs coro on a cron schedule. Standard five-field
// expressions, six fields with leading seconds, and descriptors such as
// "@hourly" are accepted.
func (s *Scheduler) ScheduleCron(id string, expr string, coro eventloop.Coroutine, opts ...Options) error {
	if err := validation.ValidateNotEmpty("periodic", "cron expression", expr); err != nil {
		return err
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return gferrors.NewValidationError("periodic", "cron expression", expr, err.Error()).
			WithHint("use five fields, six with seconds, or a descriptor such as @daily")
	}
	return s.add(&entry{
		id:       id,
		expr:     expr,
		schedule: schedule,
		coro:     coro,
		opts:     firstOptions(opts),
	})
}

// Cancel removes an entry. A run in flight is left to finish.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	e.handle.Cancel()
	return true
}

// CancelAll removes every entry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		e.handle.Cancel()
		delete(s.entries, id)
	}
}

// Stop removes every entry, cancels runs in flight and rejects later
// scheduling with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	var running []*eventloop.Task
	for id, e := range s.entries {
		e.handle.Cancel()
		if e.running != nil {
			running = append(running, e.running)
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, t := range running {
		t.Cancel()
	}
}

// Entry returns the entry with the given id.
func (s *Scheduler) Entry(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// List returns all entries ordered by next run.
func (s *Scheduler) List() []Entry {
	s.mu.Lock()
	list := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e.snapshot())
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].NextRun.Before(list[j].NextRun)
	})
	return list
}

func (s *Scheduler) add(e *entry) error {
	if err := validation.ValidateNotEmpty("periodic", "id", e.id); err != nil {
		return err
	}
	if err := validation.ValidateNotNil("periodic", "coroutine", e.coro); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if _, exists := s.entries[e.id]; exists {
		return gferrors.NewValidationError("periodic", "id", e.id, "already scheduled").
			WithHint("cancel the existing entry first")
	}

	s.entries[e.id] = e
	s.arm(e, time.Now())
	return nil
}

// arm schedules the next tick of e. Callers hold s.mu.
func (s *Scheduler) arm(e *entry, now time.Time) {
	e.next = e.schedule.Next(now.In(s.location))
	e.handle = s.loop.CallAt(e.next, func() { s.fire(e) })
}

// fire runs on the loop.
func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	if s.entries[e.id] != e {
		s.mu.Unlock()
		return
	}

	busy := e.running != nil && !e.running.Done()
	if busy {
		e.skipped++
	} else {
		e.runs++
	}
	if e.opts.MaxRuns > 0 && e.runs >= e.opts.MaxRuns {
		delete(s.entries, e.id)
	} else {
		s.arm(e, time.Now())
	}
	s.mu.Unlock()

	if busy {
		s.logger.Warn("skipping run, previous run still in flight", slog.String("id", e.id))
		if e.opts.OnSkip != nil {
			e.opts.OnSkip(e.id)
		}
		return
	}

	task := s.loop.Spawn(e.coro)
	s.mu.Lock()
	e.running = task
	s.mu.Unlock()

	task.AddDoneCallback(func(f *eventloop.Future) {
		err := f.Err()
		if err == nil || f.Cancelled() {
			return
		}
		s.logger.Error("periodic run failed", slog.String("id", e.id), slog.Any("error", err))
		if e.opts.OnError != nil {
			e.opts.OnError(e.id, err)
		}
	})
}

func (e *entry) snapshot() Entry {
	return Entry{
		ID:         e.id,
		Expression: e.expr,
		Interval:   e.interval,
		NextRun:    e.next,
		Runs:       e.runs,
		Skipped:    e.skipped,
		Running:    e.running != nil && !e.running.Done(),
	}
}

func firstOptions(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

// intervalSchedule is a cron.Schedule with sub-second precision;
// cron.Every rounds down to whole seconds.
type intervalSchedule time.Duration

func every(d time.Duration) cron.Schedule {
	return intervalSchedule(d)
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}
