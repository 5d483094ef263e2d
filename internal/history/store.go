package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/jmylchreest/apismoke/internal/suite"
)

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = errors.New("run not found")

// SaveRun stores the outcome with its checks and results in one transaction.
func (s *Store) SaveRun(ctx context.Context, outcome *suite.Outcome) (*Run, error) {
	id, err := ParseULID(outcome.RunID)
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}

	run := &Run{
		ID:            id,
		BaseURL:       outcome.BaseURL,
		StartedAt:     outcome.StartedAt,
		FinishedAt:    outcome.FinishedAt,
		DurationMS:    outcome.Duration().Milliseconds(),
		Success:       outcome.Success,
		ChecksTotal:   outcome.Stats.Checks,
		ChecksPassed:  outcome.Stats.ChecksPassed,
		ResultsTotal:  outcome.Stats.Results,
		ResultsPassed: outcome.Stats.ResultsPassed,
	}
	for i, c := range outcome.Checks {
		run.Checks = append(run.Checks, StoredCheck{
			Position:  i,
			Name:      c.Name,
			Passed:    c.Passed,
			ElapsedMS: c.Elapsed.Milliseconds(),
		})
	}
	for i, r := range outcome.Results {
		run.Results = append(run.Results, StoredResult{
			Position:  i,
			Name:      r.Name,
			Success:   r.Success,
			Message:   r.Message,
			Details:   Details(r.Details),
			ElapsedMS: r.Elapsed.Milliseconds(),
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	}); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	s.logger.Debug("run saved",
		slog.String("run_id", run.ID.String()),
		slog.Int("results", len(run.Results)),
	)
	return run, nil
}

// RecentRuns returns up to limit runs, newest first, without checks or
// results. A non-positive limit uses the configured default.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = s.cfg.Limit
	}

	var runs []Run
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its checks and results in execution order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	runID, err := ParseULID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}

	var run Run
	err = s.db.WithContext(ctx).
		Preload("Checks", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return &run, nil
}

// RunResults returns the stored results of one run in execution order.
func (s *Store) RunResults(ctx context.Context, id string) ([]StoredResult, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return run.Results, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var ids []ULID
	if err := s.db.WithContext(ctx).Model(&Run{}).
		Order("started_at DESC").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("finding stale runs: %w", err)
	}
	if len(ids) <= keep {
		return 0, nil
	}
	stale := ids[keep:]

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id IN ?", stale).Delete(&StoredResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id IN ?", stale).Delete(&StoredCheck{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", stale).Delete(&Run{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return removed, nil
}
