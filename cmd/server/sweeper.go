package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nickyhof/DuckDesk"
)

// Sweeper periodically removes upload files left behind by interrupted
// imports.
type Sweeper struct {
	cron     *cron.Cron
	instance *DuckDesk.Instance
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewSweeper(instance *DuckDesk.Instance, schedule string, maxAge time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		cron:     cron.New(),
		instance: instance,
		maxAge:   maxAge,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) Sweep() {
	if _, err := s.instance.SweepUploads(s.maxAge); err != nil {
		s.logger.Warn("upload sweep failed", "error", err)
	}
}
