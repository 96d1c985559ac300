package collector

import (
	"context"
	"time"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/logger"
	"codeberg.org/kaibil/xark/internal/store"
)

// Result reports the outcome of a collection pass.
type Result struct {
	Collected bool
}

// Collector runs the once-per-day collection pass: gather device facts,
// persist them, verify the writes, then flip the day's collect flag.
type Collector struct {
	repo     store.Repository
	provider facts.Provider
	date     int
	statusID int64
}

func New(repo store.Repository, provider facts.Provider, date int, statusID int64) *Collector {
	return &Collector{
		repo:     repo,
		provider: provider,
		date:     date,
		statusID: statusID,
	}
}

// Collect is idempotent per day: an already-collected day returns
// immediately without running the facts provider.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	errFactory := errors.New()

	collected, err := c.repo.IsCollected(ctx, c.date)
	if err != nil {
		return Result{}, err
	}
	if collected {
		logger.Debug().Int("date", c.date).Msg("Day already collected")
		return Result{Collected: true}, nil
	}

	journal := c.provider.Journal(ctx)
	snapshot := c.provider.Snapshot(ctx)

	if err := c.repo.InsertJournalEntries(ctx, c.statusID, journal); err != nil {
		return Result{}, err
	}
	if err := c.repo.InsertDeviceData(ctx, c.statusID, snapshot); err != nil {
		return Result{}, err
	}

	// Collection is all-or-nothing at day granularity: the flag only flips
	// once both row kinds are verifiably present. A failed pass leaves the
	// day uncollected so a future run retries; its rows stay as orphans.
	journalCount, err := c.repo.JournalCount(ctx, c.statusID)
	if err != nil {
		return Result{}, err
	}
	deviceCount, err := c.repo.DeviceDataCount(ctx, c.statusID)
	if err != nil {
		return Result{}, err
	}
	if journalCount < 1 || deviceCount < 1 {
		return Result{}, errFactory.WithData(errors.ErrCollectIncomplete, struct {
			JournalRows int
			DeviceRows  int
		}{journalCount, deviceCount})
	}

	if err := c.repo.MarkCollected(ctx, c.date, time.Now()); err != nil {
		// A concurrent pass flipping the flag first is a benign race.
		if errors.CodeOf(err) == errors.ErrAlreadyMarked {
			logger.Debug().Int("date", c.date).Msg("Day collected by concurrent pass")
			return Result{Collected: true}, nil
		}
		return Result{}, err
	}

	logger.Info().
		Int("date", c.date).
		Int("journal_rows", journalCount).
		Msg("Collection pass complete")

	return Result{Collected: true}, nil
}
