package syncer

import (
	"context"
	"time"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/logger"
	"codeberg.org/kaibil/xark/internal/store"
)

// Result reports the outcome of a synchronization run.
type Result struct {
	Synced   bool
	Attempts int
}

// Config holds the retry parameters. MaxAttempts of zero retries
// indefinitely, the original agent behavior.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Syncer uploads a day's collected data to the remote collector. It is a
// cancellable retry task: each failed attempt waits Interval on a timer
// select-ed against the context, holding no store lock while waiting.
type Syncer struct {
	repo   store.Repository
	client *Client
	cfg    Config
	date   int
}

func New(repo store.Repository, client *Client, cfg Config, date int) *Syncer {
	return &Syncer{
		repo:   repo,
		client: client,
		cfg:    cfg,
		date:   date,
	}
}

// Run drives the sync loop until the day is synchronized, the context is
// canceled, or the optional attempt bound is hit. Remote trouble is never
// fatal; it only delays success.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	errFactory := errors.New()

	attempts := 0
	for {
		synced, collected, err := s.repo.SyncState(ctx, s.date)
		if err != nil {
			return Result{Attempts: attempts}, err
		}
		if synced {
			logger.Debug().Int("date", s.date).Msg("Day already synchronized")
			return Result{Synced: true, Attempts: attempts}, nil
		}

		// An idempotent return is not an attempt; only work past the flag
		// check counts.
		attempts++

		switch {
		case !collected:
			// Nothing to send yet; collection may complete concurrently.
			logger.Debug().Int("date", s.date).Msg("Day not collected yet, waiting")
		case !s.client.Probe(ctx):
			logger.Info().Int("date", s.date).Msg("Remote collector unreachable")
		default:
			if err := s.attemptUpload(ctx); err != nil {
				logger.ErrorWithCode(asDomainError(err)).Msg("Upload attempt failed")
			} else {
				logger.Info().
					Int("date", s.date).
					Int("attempts", attempts).
					Msg("Day synchronized")
				return Result{Synced: true, Attempts: attempts}, nil
			}
		}

		if s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts {
			return Result{Attempts: attempts},
				errFactory.WithData(errors.ErrSyncExhausted, attempts)
		}

		logger.Info().
			Int("date", s.date).
			Int("attempt", attempts).
			Dur("delay", s.cfg.Interval).
			Msg("Rescheduling synchronization")

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Attempts: attempts},
				errFactory.Wrap(errors.ErrOperationCanceled, ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Syncer) attemptUpload(ctx context.Context) error {
	day, err := s.repo.DayRows(ctx, s.date)
	if err != nil {
		return err
	}

	payload := &Payload{
		SchemaVersion: PayloadSchemaVersion,
		Status:        day.Status,
		Journal:       day.Journal,
		Device:        day.Device,
		Excepts:       day.Excepts,
	}
	if err := s.client.Upload(ctx, payload); err != nil {
		return err
	}

	if err := s.repo.MarkSynced(ctx, s.date, time.Now()); err != nil {
		// Another invocation marking the day first is a benign race.
		if errors.CodeOf(err) == errors.ErrAlreadyMarked {
			logger.Debug().Int("date", s.date).Msg("Day synchronized by concurrent run")
			return nil
		}
		return err
	}

	return nil
}

func asDomainError(err error) errors.Error {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return errors.New().Wrap(errors.ErrInternal, err)
}
