package store

import (
	"context"
	"time"

	"codeberg.org/kaibil/xark/internal/facts"
)

// StatusRow mirrors one xk_status record.
type StatusRow struct {
	ID            int64  `json:"id_status"`
	SerialNumber  string `json:"serial_num"`
	UUID          string `json:"uuid"`
	DatePrint     int    `json:"date_print"`
	CollectStatus bool   `json:"collect_status"`
	CollectDate   string `json:"collect_date,omitempty"`
	SyncStatus    bool   `json:"sync_status"`
	SyncDate      string `json:"sync_date,omitempty"`
	CreateAt      string `json:"create_at"`
	UpdateAt      string `json:"update_at"`
}

// JournalRow mirrors one xk_journal_xo record.
type JournalRow struct {
	Activity       string `json:"activity"`
	ActivityID     string `json:"activity_id"`
	Checksum       string `json:"checksum"`
	CreationTime   string `json:"creation_time"`
	FileSize       string `json:"file_size"`
	IconColor      string `json:"icon_color"`
	Keep           string `json:"keep"`
	LaunchTimes    string `json:"launch_times"`
	MimeType       string `json:"mime_type"`
	Mountpoint     string `json:"mountpoint"`
	Mtime          string `json:"mtime"`
	ShareScope     string `json:"share_scope"`
	SpentTimes     string `json:"spent_times"`
	Timestamp      string `json:"time_stamp"`
	Title          string `json:"title"`
	TitleSetByUser string `json:"title_set_by_user"`
	UID            string `json:"uid"`
	CreateAt       string `json:"create_at"`
	UpdateAt       string `json:"update_at"`
}

// DeviceRow mirrors one xk_data_xo record.
type DeviceRow struct {
	ActivitiesHistory string `json:"activities_history"`
	RAM               string `json:"ram"`
	ROM               string `json:"rom"`
	Kernel            string `json:"kernel"`
	Architecture      string `json:"arqc"`
	MAC               string `json:"mac"`
	CreateAt          string `json:"create_at"`
	UpdateAt          string `json:"update_at"`
}

// ExceptionRow mirrors one xk_excepts record. Rows are append-only.
type ExceptionRow struct {
	Type     string `json:"except_type"`
	Message  string `json:"except_messg"`
	FileName string `json:"file_name"`
	FileLine string `json:"file_line"`
	Code     string `json:"except_code"`
	Trace    string `json:"tb_except"`
	UserName string `json:"user_name"`
	CreateAt string `json:"create_at,omitempty"`
	UpdateAt string `json:"update_at,omitempty"`
}

// DayRows is everything persisted for one day, in upload order.
type DayRows struct {
	Status  StatusRow
	Journal []JournalRow
	Device  *DeviceRow
	Excepts []ExceptionRow
}

// Repository is the persistent status store. A single connection per
// process invocation; cross-process writers for the same date are a benign
// race, each write being one atomic row update.
type Repository interface {
	// GetOrCreateDailyStatus idempotently returns the status row id for
	// date, creating the row with both flags false if absent.
	GetOrCreateDailyStatus(ctx context.Context, date int, serialNum, uuid string) (int64, error)

	IsCollected(ctx context.Context, date int) (bool, error)

	// SyncState reads both daily flags in one query.
	SyncState(ctx context.Context, date int) (synced, collected bool, err error)

	// MarkCollected flips collect_status for date. Fails loudly when the
	// flag is already set or the row is missing.
	MarkCollected(ctx context.Context, date int, ts time.Time) error

	// MarkSynced flips sync_status for date. Refuses to mark a day that
	// has not been collected.
	MarkSynced(ctx context.Context, date int, ts time.Time) error

	InsertJournalEntries(ctx context.Context, statusID int64, entries []facts.JournalEntry) error
	InsertDeviceData(ctx context.Context, statusID int64, data *facts.DeviceData) error

	JournalCount(ctx context.Context, statusID int64) (int, error)
	DeviceDataCount(ctx context.Context, statusID int64) (int, error)

	AppendException(ctx context.Context, rec ExceptionRow) error

	// DayRows loads the day's status, journal, device and exception rows
	// for payload assembly.
	DayRows(ctx context.Context, date int) (*DayRows, error)

	Close() error
}
