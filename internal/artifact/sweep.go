// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SweepResult holds the outcome of one sweep pass.
type SweepResult struct {
	Removed int
	Failed  int
}

// HasFailures reports whether any expired artifact could not be removed.
func (r SweepResult) HasFailures() bool {
	return r.Failed > 0
}

// SweepRecorder observes finished sweep passes. Metrics implements it.
type SweepRecorder interface {
	ObserveSweep(removed, failed int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSweep(int, int) {}

// Sweeper deletes expired artifacts and their ledger records.
type Sweeper struct {
	store    Store
	recorder SweepRecorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewSweeper returns a Sweeper over store.
func NewSweeper(store Store, log zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, recorder: nopRecorder{}, log: log, now: time.Now}
}

// WithRecorder sets the recorder notified after every sweep pass.
func (s *Sweeper) WithRecorder(r SweepRecorder) *Sweeper {
	s.recorder = r
	return s
}

// Sweep removes every artifact expired at now. A file that is already gone
// counts as removed. The record of an artifact whose file cannot be deleted
// is kept so a later pass retries it.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	expired, err := s.store.Expired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing expired artifacts: %w", err)
	}

	var result SweepResult
	for _, a := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("id", a.ID).Msg("removing expired artifact")
			result.Failed++
			continue
		}
		if err := s.store.Delete(ctx, a.ID); err != nil {
			s.log.Warn().Err(err).Str("id", a.ID).Msg("forgetting expired artifact")
			result.Failed++
			continue
		}
		result.Removed++
	}

	s.recorder.ObserveSweep(result.Removed, result.Failed)
	if result.Removed > 0 || result.Failed > 0 {
		s.log.Info().Int("removed", result.Removed).Int("failed", result.Failed).Msg("sweep complete")
	}
	return result, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.now()); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
