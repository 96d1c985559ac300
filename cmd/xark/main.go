package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"codeberg.org/kaibil/xark/internal/collector"
	"codeberg.org/kaibil/xark/internal/config"
	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/exceptions"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/identity"
	"codeberg.org/kaibil/xark/internal/logger"
	"codeberg.org/kaibil/xark/internal/pid"
	"codeberg.org/kaibil/xark/internal/schedule"
	"codeberg.org/kaibil/xark/internal/store"
	"codeberg.org/kaibil/xark/internal/syncer"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	window, err := schedule.Parse(cfg.WindowStart, cfg.WindowEnd, cfg.WindowDays)
	if err != nil {
		logger.ErrorWithCode(asDomainError(err)).Msg("Invalid operational window")
		return 1
	}

	now := time.Now()
	if !window.Contains(now) {
		logger.Info().
			Str("weekday", now.Weekday().String()).
			Str("time", now.Format("15:04:05")).
			Msg("Outside operational window, nothing to do")
		return 0
	}

	if err := pid.Write(); err != nil {
		logger.ErrorWithCode(asDomainError(err)).Msg("Instance guard failed")
		return 1
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.ErrorWithCode(errors.New().Wrap(errors.ErrShutdownFailed, err)).
				Msg("Failed to remove pid file")
		}
	}()

	id, err := identity.Read(cfg.IdentityFile)
	if err != nil {
		logger.ErrorWithCode(asDomainError(err)).Msg("Failed to read device identity")
		return 1
	}

	repo, err := store.NewRepository(store.Config{DBPath: cfg.Database})
	if err != nil {
		logger.ErrorWithCode(asDomainError(err)).Msg("Failed to open status store")
		return 1
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.ErrorWithCode(errors.New().Wrap(errors.ErrShutdownFailed, err)).
				Msg("Failed to close status store")
		}
	}()

	// The run ends no later than the window's close, releasing the
	// instance guard before the next day's invocation needs it. A sync
	// loop still retrying at that point resumes on the next run.
	ctx, cancel := context.WithDeadline(context.Background(), window.End(now))
	defer cancel()
	go handleSignals(cancel)

	date := datePrint(now)
	statusID, err := repo.GetOrCreateDailyStatus(ctx, date, id.SerialNumber, id.UUID)
	if err != nil {
		exceptions.Capture(context.Background(), repo, err)
		logger.ErrorWithCode(asDomainError(err)).Msg("Failed to get daily status")
		return 1
	}

	provider := facts.NewProvider(cfg.WorkingDir, cfg.JournalDir, cfg.Interface)
	col := collector.New(repo, provider, date, statusID)
	client := syncer.NewClient(cfg.ServerURL, cfg.User, id.SerialNumber, id.UUID,
		time.Duration(cfg.HTTPTimeout)*time.Second)
	syn := syncer.New(repo, client, syncer.Config{
		Interval:    time.Duration(cfg.SyncInterval) * time.Second,
		MaxAttempts: cfg.SyncMaxAttempts,
	}, date)

	// Collection and synchronization are independent units of work; the
	// sync loop for today must not block collecting, and vice versa.
	var wg sync.WaitGroup
	var collectErr, syncErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, collectErr = col.Collect(ctx)
	}()
	go func() {
		defer wg.Done()
		_, syncErr = syn.Run(ctx)
	}()
	wg.Wait()

	exitCode := 0
	for _, runErr := range []error{collectErr, syncErr} {
		if runErr == nil {
			continue
		}
		// Shutdown or the window closing mid-retry is a normal way for
		// the sync loop to end.
		if errors.CodeOf(runErr) == errors.ErrOperationCanceled {
			logger.Info().Msg("Run stopped before completion")
			continue
		}
		exceptions.Capture(context.Background(), repo, runErr)
		logger.ErrorWithCode(asDomainError(runErr)).Msg("Run failed")
		exitCode = 1
	}

	return exitCode
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// datePrint is the calendar date key in YYYYMMDD form.
func datePrint(t time.Time) int {
	date, _ := strconv.Atoi(t.Format("20060102"))
	return date
}

func asDomainError(err error) errors.Error {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return errors.New().Wrap(errors.ErrInternal, err)
}
