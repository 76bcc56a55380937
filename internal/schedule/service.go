package schedule

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/sqlite"
)

// ErrNotFound is returned when the user has no stored schedule.
var ErrNotFound = errors.NewSentinel("schedule not found")

// Cache stores rendered schedule views per user.
type Cache interface {
	// Get returns the cached payload and whether it was found.
	Get(ctx context.Context, userID int64) ([]byte, bool, error)
	Set(ctx context.Context, userID int64, payload []byte) error
	Invalidate(ctx context.Context, userID int64) error
}

// Service normalizes generated plans and persists them. It is the only writer of the schedule tables.
type Service struct {
	repo       *sqliteRepository
	normalizer *Normalizer
	cache      Cache
	logger     *slog.Logger
}

// NewService creates a new schedule service.
func NewService(db *sqlite.Database, cache Cache, defaults Defaults, logger *slog.Logger) *Service {
	return &Service{
		repo:       newSQLiteRepository(db, logger),
		normalizer: NewNormalizer(defaults),
		cache:      cache,
		logger:     logger,
	}
}

// Save replaces the whole schedule of the user with plan, starting at the week of startDate.
//
// Either the complete plan is stored or, on error, the previous schedule is left untouched.
func (s *Service) Save(ctx context.Context, userID int64, plan RawPlan, startDate time.Time) (Schedule, error) {
	sched, err := s.normalizer.Normalize(plan, startDate, 0)
	if err != nil {
		return Schedule{}, errors.Wrap(err, "normalize plan", slog.Int64("user_id", userID))
	}
	s.logWarnings(ctx, userID, sched.Warnings)

	if err = s.repo.replaceAll(ctx, userID, sched.Weeks); err != nil {
		return Schedule{}, errors.Wrap(err, "replace schedule", slog.Int64("user_id", userID))
	}
	s.invalidate(ctx, userID)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "saved schedule",
		slog.Int64("user_id", userID),
		slog.Int("weeks", len(sched.Weeks)),
		slog.Int("warnings", len(sched.Warnings)))
	return sched, nil
}

// SaveFromCutoff replaces the weeks from the week of cutoff onward with plan and keeps earlier weeks as they are.
// The new weeks continue the week numbering of the last kept week.
func (s *Service) SaveFromCutoff(ctx context.Context, userID int64, plan RawPlan, cutoff time.Time) (Schedule, error) {
	cutoff = mondayOf(cutoff)
	cutoffDate := formatDate(cutoff)

	lastKept, err := s.repo.lastWeekNumberBefore(ctx, userID, cutoffDate)
	if err != nil {
		return Schedule{}, errors.Wrap(err, "find continuation week", slog.Int64("user_id", userID))
	}

	sched, err := s.normalizer.Normalize(plan, cutoff, lastKept)
	if err != nil {
		return Schedule{}, errors.Wrap(err, "normalize plan", slog.Int64("user_id", userID))
	}
	s.logWarnings(ctx, userID, sched.Warnings)

	if err = s.repo.replaceFrom(ctx, userID, cutoffDate, sched.Weeks); err != nil {
		return Schedule{}, errors.Wrap(err, "replace future weeks", slog.Int64("user_id", userID),
			slog.String("cutoff", cutoffDate))
	}
	s.invalidate(ctx, userID)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "grafted schedule",
		slog.Int64("user_id", userID),
		slog.String("cutoff", cutoffDate),
		slog.Int("kept_weeks", lastKept),
		slog.Int("new_weeks", len(sched.Weeks)),
		slog.Int("warnings", len(sched.Warnings)))
	return sched, nil
}

// Schedule returns the stored schedule of the user. Results are served from the cache when possible.
func (s *Service) Schedule(ctx context.Context, userID int64) ([]Week, error) {
	payload, found, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "schedule cache read failed",
			slog.Int64("user_id", userID), errors.SlogError(err))
	}
	if found {
		var weeks []Week
		if err = json.Unmarshal(payload, &weeks); err == nil {
			return weeks, nil
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "discarding corrupt cached schedule",
			slog.Int64("user_id", userID), errors.SlogError(err))
	}

	weeks, err := s.repo.list(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list schedule", slog.Int64("user_id", userID))
	}
	if len(weeks) == 0 {
		return nil, ErrNotFound
	}

	if payload, err = json.Marshal(weeks); err != nil {
		return nil, errors.Wrap(err, "marshal schedule")
	}
	if err = s.cache.Set(ctx, userID, payload); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "schedule cache write failed",
			slog.Int64("user_id", userID), errors.SlogError(err))
	}
	return weeks, nil
}

// invalidate drops the cached view. The write has already been committed, so failures are only logged.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to invalidate schedule cache",
			slog.Int64("user_id", userID), errors.SlogError(err))
	}
}

func (s *Service) logWarnings(ctx context.Context, userID int64, warnings []string) {
	for _, w := range warnings {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "plan normalization warning",
			slog.Int64("user_id", userID), slog.String("warning", w))
	}
}
