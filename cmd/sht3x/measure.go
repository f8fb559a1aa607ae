package main

import (
	"context"
	"log/slog"

	"github.com/mklimuk/sht3x/environment"
)

// execute runs the requested operations in a fixed order regardless of the
// order of flags: reset, heater, accelerated response, measurement, stop
// periodic, clear status, read status. The first failure stops the run.
func execute(ctx context.Context, cfg config, s *environment.SHT3x, r *renderer) error {
	if cfg.reset {
		slog.Debug("resetting chip")
		if err := s.Reset(ctx); err != nil {
			return err
		}
	}
	if cfg.heater != heaterUnchanged {
		slog.Debug("setting heater", "on", cfg.heater == heaterOn)
		if err := s.SetHeater(ctx, cfg.heater == heaterOn); err != nil {
			return err
		}
	}
	if cfg.accelerated {
		slog.Debug("enabling accelerated response time")
		if err := s.AcceleratedResponse(ctx); err != nil {
			return err
		}
	}
	if cfg.read {
		m, err := measure(ctx, cfg.readMode, s)
		if err != nil {
			return err
		}
		if err := r.measurement(m); err != nil {
			return err
		}
	}
	if cfg.stopPeriodic {
		slog.Debug("stopping periodic mode")
		if err := s.StopPeriodic(ctx); err != nil {
			return err
		}
	}
	if cfg.clearStatus {
		slog.Debug("clearing status word")
		if err := s.ClearStatus(ctx); err != nil {
			return err
		}
	}
	if cfg.status {
		slog.Debug("reading status word")
		status, err := s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		if err := r.status(status); err != nil {
			return err
		}
	}
	return r.close()
}

func measure(ctx context.Context, mode readMode, s *environment.SHT3x) (environment.Measurement, error) {
	switch mode {
	case readStartPeriodic:
		slog.Debug("starting periodic mode")
		return s.StartPeriodic(ctx)
	case readFetchPeriodic:
		slog.Debug("fetching periodic measurement")
		return s.FetchPeriodic(ctx)
	default:
		slog.Debug("single shot measurement")
		return s.SingleShot(ctx)
	}
}
