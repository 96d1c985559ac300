package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/store"
)

const testDate = 20240101

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()

	repo, err := store.NewRepository(store.Config{
		DBPath: filepath.Join(t.TempDir(), "xark.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testEntries(n int) []facts.JournalEntry {
	entries := make([]facts.JournalEntry, n)
	for i := range entries {
		entries[i] = facts.JournalEntry{
			Activity:       "org.laptop.WebActivity",
			ActivityID:     "abc123",
			Checksum:       "deadbeef",
			CreationTime:   "1700000000",
			FileSize:       "1024",
			IconColor:      "#FF2B34,#005FE4",
			Keep:           "0",
			LaunchTimes:    "1700000001",
			MimeType:       "text/html",
			Mountpoint:     "/",
			Mtime:          "2024-01-01T10:00:00",
			ShareScope:     "private",
			SpentTimes:     "120",
			Timestamp:      "1700000002",
			Title:          "Browse session",
			TitleSetByUser: "0",
			UID:            "uid-1",
		}
	}

	return entries
}

func testDeviceData() *facts.DeviceData {
	return &facts.DeviceData{
		ActivityHistory: "Browse,Chat,Write",
		RAM:             "233,100,133|512,0,512",
		ROM:             "7.9G,5.1G,2.8G,/",
		Kernel:          "Linux xo-1 2.6.31",
		Architecture:    "i586|1|Geode(TM)",
		MAC:             "00:17:c4:0a:0b:0c",
	}
}

func TestGetOrCreateDailyStatusIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	second, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)
	assert.Equal(t, first, second, "Expected the same status id on repeated calls")

	day, err := repo.DayRows(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, "SN123", day.Status.SerialNumber)
	assert.Equal(t, "UUID456", day.Status.UUID)
	assert.False(t, day.Status.CollectStatus)
	assert.False(t, day.Status.SyncStatus)
}

func TestNewDayStartsUncollected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	collected, err := repo.IsCollected(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, collected)

	synced, collected, err := repo.SyncState(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, synced)
	assert.False(t, collected)
}

func TestIsCollectedMissingDay(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.IsCollected(context.Background(), testDate)
	require.Error(t, err)
	assert.Equal(t, errors.ErrStatusMissing, errors.CodeOf(err))
}

func TestMarkCollected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	require.NoError(t, repo.MarkCollected(ctx, testDate, time.Now()))

	collected, err := repo.IsCollected(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, collected)

	// The flag is monotonic; a second mark fails loudly.
	err = repo.MarkCollected(ctx, testDate, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrAlreadyMarked, errors.CodeOf(err))
}

func TestMarkSyncedRequiresCollected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	err = repo.MarkSynced(ctx, testDate, time.Now())
	require.Error(t, err, "Sync must never be marked before collection")
	assert.Equal(t, errors.ErrNotCollected, errors.CodeOf(err))

	synced, _, err := repo.SyncState(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, synced)

	require.NoError(t, repo.MarkCollected(ctx, testDate, time.Now()))
	require.NoError(t, repo.MarkSynced(ctx, testDate, time.Now()))

	synced, collected, err := repo.SyncState(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.True(t, collected)

	err = repo.MarkSynced(ctx, testDate, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrAlreadyMarked, errors.CodeOf(err))
}

func TestMarkMissingDay(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.MarkCollected(ctx, testDate, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrStatusMissing, errors.CodeOf(err))

	err = repo.MarkSynced(ctx, testDate, time.Now())
	require.Error(t, err)
	assert.Equal(t, errors.ErrStatusMissing, errors.CodeOf(err))
}

func TestInsertAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	statusID, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	require.NoError(t, repo.InsertJournalEntries(ctx, statusID, testEntries(3)))
	require.NoError(t, repo.InsertDeviceData(ctx, statusID, testDeviceData()))

	journalCount, err := repo.JournalCount(ctx, statusID)
	require.NoError(t, err)
	assert.Equal(t, 3, journalCount)

	deviceCount, err := repo.DeviceDataCount(ctx, statusID)
	require.NoError(t, err)
	assert.Equal(t, 1, deviceCount)
}

func TestInsertNoJournalEntriesIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	statusID, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)

	require.NoError(t, repo.InsertJournalEntries(ctx, statusID, nil))

	journalCount, err := repo.JournalCount(ctx, statusID)
	require.NoError(t, err)
	assert.Zero(t, journalCount)
}

func TestDayRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	statusID, err := repo.GetOrCreateDailyStatus(ctx, testDate, "SN123", "UUID456")
	require.NoError(t, err)
	require.NoError(t, repo.InsertJournalEntries(ctx, statusID, testEntries(2)))
	require.NoError(t, repo.InsertDeviceData(ctx, statusID, testDeviceData()))
	require.NoError(t, repo.AppendException(ctx, store.ExceptionRow{
		Type:     "storage_access_failed",
		Message:  "disk full",
		FileName: "store.go",
		FileLine: "42",
		Code:     "InsertDeviceData",
		Trace:    "trace",
		UserName: "olpc",
	}))
	require.NoError(t, repo.MarkCollected(ctx, testDate, time.Now()))

	day, err := repo.DayRows(ctx, testDate)
	require.NoError(t, err)

	assert.Equal(t, statusID, day.Status.ID)
	assert.Equal(t, testDate, day.Status.DatePrint)
	assert.True(t, day.Status.CollectStatus)
	assert.NotEmpty(t, day.Status.CollectDate)
	assert.Len(t, day.Journal, 2)
	assert.Equal(t, "Browse session", day.Journal[0].Title)
	require.NotNil(t, day.Device)
	assert.Equal(t, "Browse,Chat,Write", day.Device.ActivitiesHistory)
	require.Len(t, day.Excepts, 1)
	assert.Equal(t, "disk full", day.Excepts[0].Message)
}

func TestDayRowsMissingDay(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.DayRows(context.Background(), testDate)
	require.Error(t, err)
	assert.Equal(t, errors.ErrStatusMissing, errors.CodeOf(err))
}

func TestSeparateDatesSeparateRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateDailyStatus(ctx, 20240101, "SN123", "UUID456")
	require.NoError(t, err)
	second, err := repo.GetOrCreateDailyStatus(ctx, 20240102, "SN123", "UUID456")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, repo.MarkCollected(ctx, 20240101, time.Now()))

	collected, err := repo.IsCollected(ctx, 20240102)
	require.NoError(t, err)
	assert.False(t, collected, "Marking one day must not leak into another")
}
