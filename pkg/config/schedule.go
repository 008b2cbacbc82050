package config

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
	"github.com/vnykmshr/gopermit/pkg/common/validation"
	"github.com/vnykmshr/gopermit/pkg/permit"
)

// Entry describes one scheduled window and its next firing time.
type Entry struct {
	Window string
	Next   time.Time
}

// Schedule applies a file's policy windows to a Target at their cron
// times: a business-hours window can raise the fill rate every weekday
// morning and an overnight window can lower it again.
type Schedule struct {
	target Target
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	names   map[cron.EntryID]string
	windows int
	running bool
}

// NewSchedule builds a schedule from the file's windows. The file is
// validated here so hand-built documents get the same checks as parsed
// ones. Windows are registered once; Start and Stop may cycle.
func NewSchedule(target Target, file *File, logger *slog.Logger) (*Schedule, error) {
	if err := validation.ValidateNotNil("config", "target", target); err != nil {
		return nil, err
	}
	// A typed nil pointer slips past the interface nil check.
	if file == nil {
		return nil, errors.NewValidationError("config", "file", nil, "cannot be nil").
			WithHint("provide a parsed policy file")
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Schedule{
		target:  target,
		cron:    cron.New(),
		logger:  logger.With("component", "config.schedule"),
		names:   make(map[cron.EntryID]string),
		windows: len(file.Windows),
	}

	for _, w := range file.Windows {
		policy, _ := file.Window(w.Name)
		name := w.Name
		id, err := s.cron.AddFunc(w.Cron, func() { s.apply(name, policy) })
		if err != nil {
			return nil, fmt.Errorf("schedule window %q: %w", name, err)
		}
		s.names[id] = name
	}

	return s, nil
}

// Start begins firing windows. A schedule with no windows starts
// successfully and does nothing.
func (s *Schedule) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("schedule already running")
	}

	s.cron.Start()
	s.running = true

	if s.windows == 0 {
		s.logger.Info("no policy windows configured, schedule is idle")
	} else {
		s.logger.Info("policy schedule started", "windows", s.windows)
	}
	return nil
}

// Stop halts the schedule and waits for any in-flight window apply to
// finish. Safe to call when not running.
func (s *Schedule) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("policy schedule stopped")
}

// Running reports whether the schedule is firing windows.
func (s *Schedule) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries lists the scheduled windows ordered by next firing time.
// Next is zero until the schedule has been started.
func (s *Schedule) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Window: s.names[e.ID], Next: e.Next})
	}
	return out
}

func (s *Schedule) apply(window string, policy permit.Policy) {
	if err := s.target.SetPolicy(policy); err != nil {
		s.logger.Error("window policy apply failed", "window", window, "error", err)
		return
	}
	s.logger.Info("window policy applied",
		"window", window,
		"fill_rate", policy.FillRate,
		"normal_capacity", policy.NormalCapacity)
}
