package collector_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/kaibil/xark/internal/collector"
	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/store"
)

const testDate = 20240101

type stubProvider struct {
	data         *facts.DeviceData
	journal      []facts.JournalEntry
	snapshotHits atomic.Int32
}

func (p *stubProvider) Snapshot(_ context.Context) *facts.DeviceData {
	p.snapshotHits.Add(1)
	return p.data
}

func (p *stubProvider) Journal(_ context.Context) []facts.JournalEntry {
	return p.journal
}

func fullProvider(entries int) *stubProvider {
	journal := make([]facts.JournalEntry, entries)
	for i := range journal {
		journal[i] = facts.JournalEntry{
			Activity: "org.laptop.WebActivity", ActivityID: "abc123",
			Checksum: "deadbeef", CreationTime: "1700000000", FileSize: "1024",
			IconColor: "#FF2B34,#005FE4", Keep: "0", LaunchTimes: "1700000001",
			MimeType: "text/html", Mountpoint: "/", Mtime: "2024-01-01T10:00:00",
			ShareScope: "private", SpentTimes: "120", Timestamp: "1700000002",
			Title: "Browse session", TitleSetByUser: "0", UID: "uid-1",
		}
	}

	return &stubProvider{
		data: &facts.DeviceData{
			ActivityHistory: "Browse,Chat,Write",
			RAM:             "233,100,133|512,0,512",
			ROM:             "7.9G,5.1G,2.8G,/",
			Kernel:          "Linux xo-1 2.6.31",
			Architecture:    "i586|1|Geode(TM)",
			MAC:             "00:17:c4:0a:0b:0c",
		},
		journal: journal,
	}
}

func newTestRepo(t *testing.T) (store.Repository, int64) {
	t.Helper()

	repo, err := store.NewRepository(store.Config{
		DBPath: filepath.Join(t.TempDir(), "xark.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	statusID, err := repo.GetOrCreateDailyStatus(context.Background(), testDate, "SN123", "UUID456")
	require.NoError(t, err)

	return repo, statusID
}

func TestCollectFullDay(t *testing.T) {
	repo, statusID := newTestRepo(t)
	provider := fullProvider(3)
	ctx := context.Background()

	result, err := collector.New(repo, provider, testDate, statusID).Collect(ctx)
	require.NoError(t, err)
	assert.True(t, result.Collected)

	collected, err := repo.IsCollected(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, collected)

	day, err := repo.DayRows(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, day.Journal, 3)
	require.NotNil(t, day.Device)
	assert.Equal(t, "00:17:c4:0a:0b:0c", day.Device.MAC)
}

func TestCollectIdempotent(t *testing.T) {
	repo, statusID := newTestRepo(t)
	provider := fullProvider(3)
	ctx := context.Background()
	col := collector.New(repo, provider, testDate, statusID)

	_, err := col.Collect(ctx)
	require.NoError(t, err)

	result, err := col.Collect(ctx)
	require.NoError(t, err)
	assert.True(t, result.Collected)
	assert.Equal(t, int32(1), provider.snapshotHits.Load(),
		"Repeated collect must not run the facts provider again")

	day, err := repo.DayRows(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, day.Journal, 3, "Repeated collect must not write new rows")
}

func TestCollectMissingFieldKeepsSentinel(t *testing.T) {
	repo, statusID := newTestRepo(t)
	provider := fullProvider(1)
	provider.journal[0].Title = facts.Empty

	_, err := collector.New(repo, provider, testDate, statusID).Collect(context.Background())
	require.NoError(t, err)

	day, err := repo.DayRows(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, day.Journal, 1)
	assert.Equal(t, "Empty", day.Journal[0].Title)
}

func TestCollectIncompleteLeavesDayUncollected(t *testing.T) {
	repo, statusID := newTestRepo(t)
	provider := fullProvider(0) // no journal rows, verification fails
	ctx := context.Background()

	result, err := collector.New(repo, provider, testDate, statusID).Collect(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCollectIncomplete, errors.CodeOf(err))
	assert.False(t, result.Collected)

	collected, err := repo.IsCollected(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, collected, "A failed pass must leave the day uncollected")
}

func TestConcurrentCollectBenignRace(t *testing.T) {
	repo, statusID := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]collector.Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = collector.New(repo, fullProvider(2), testDate, statusID).Collect(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Collected)
	}

	// One true flag; duplicated rows are an accepted benign race.
	collected, err := repo.IsCollected(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, collected)

	deviceCount, err := repo.DeviceDataCount(ctx, statusID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deviceCount, 1)
}
