package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/logger"
)

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository opens (creating if needed) the local database and
// initializes the schema.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Initializing status repository")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) GetOrCreateDailyStatus(ctx context.Context, date int, serialNum, uuid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO xk_status (serial_num, uuid, date_print)
        VALUES (?, ?, ?)
        ON CONFLICT(date_print) DO NOTHING`,
		serialNum, uuid, date)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id_status FROM xk_status WHERE date_print = ?`, date).Scan(&id)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	return id, nil
}

func (r *sqliteRepository) IsCollected(ctx context.Context, date int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var collected int
	err := r.db.QueryRowContext(ctx,
		`SELECT collect_status FROM xk_status WHERE date_print = ?`, date).Scan(&collected)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errors.New().New(errors.ErrStatusMissing)
	}
	if err != nil {
		return false, errors.New().Wrap(errors.ErrStorageAccess, err)
	}

	return collected == 1, nil
}

func (r *sqliteRepository) SyncState(ctx context.Context, date int) (synced, collected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var syncFlag, collectFlag int
	err = r.db.QueryRowContext(ctx,
		`SELECT sync_status, collect_status FROM xk_status WHERE date_print = ?`,
		date).Scan(&syncFlag, &collectFlag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, errors.New().New(errors.ErrStatusMissing)
	}
	if err != nil {
		return false, false, errors.New().Wrap(errors.ErrStorageAccess, err)
	}

	return syncFlag == 1, collectFlag == 1, nil
}

func (r *sqliteRepository) MarkCollected(ctx context.Context, date int, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	res, err := r.db.ExecContext(ctx, `
        UPDATE xk_status
        SET collect_status = 1, collect_date = ?, update_at = datetime('now')
        WHERE date_print = ? AND collect_status = 0`,
		ts.Format(time.RFC3339), date)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	changed, err := res.RowsAffected()
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	if changed == 0 {
		return r.explainNoChange(ctx, date, markCollect)
	}

	return nil
}

func (r *sqliteRepository) MarkSynced(ctx context.Context, date int, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	// collect_status = 1 in the predicate enforces collect-before-sync at
	// the store, independent of caller discipline.
	res, err := r.db.ExecContext(ctx, `
        UPDATE xk_status
        SET sync_status = 1, sync_date = ?, update_at = datetime('now')
        WHERE date_print = ? AND sync_status = 0 AND collect_status = 1`,
		ts.Format(time.RFC3339), date)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	changed, err := res.RowsAffected()
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	if changed == 0 {
		return r.explainNoChange(ctx, date, markSync)
	}

	return nil
}

type markKind int

const (
	markCollect markKind = iota
	markSync
)

// explainNoChange distinguishes the reasons a guarded flag update matched
// no row. Runs under the repository mutex.
func (r *sqliteRepository) explainNoChange(ctx context.Context, date int, kind markKind) error {
	errFactory := errors.New()

	var syncFlag, collectFlag int
	err := r.db.QueryRowContext(ctx,
		`SELECT sync_status, collect_status FROM xk_status WHERE date_print = ?`,
		date).Scan(&syncFlag, &collectFlag)
	if errors.Is(err, sql.ErrNoRows) {
		return errFactory.WithData(errors.ErrStatusMissing, date)
	}
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	if kind == markSync && collectFlag == 0 {
		return errFactory.WithData(errors.ErrNotCollected, date)
	}

	return errFactory.WithData(errors.ErrAlreadyMarked, date)
}

func (r *sqliteRepository) InsertJournalEntries(ctx context.Context, statusID int64, entries []facts.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO xk_journal_xo (
            xark_status_id, activity, activity_id, checksum, creation_time,
            file_size, icon_color, keep, launch_times, mime_type, mountpoint,
            mtime, share_scope, spent_times, time_stamp, title,
            title_set_by_user, uid
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		_, err := stmt.ExecContext(ctx,
			statusID, e.Activity, e.ActivityID, e.Checksum, e.CreationTime,
			e.FileSize, e.IconColor, e.Keep, e.LaunchTimes, e.MimeType,
			e.Mountpoint, e.Mtime, e.ShareScope, e.SpentTimes, e.Timestamp,
			e.Title, e.TitleSetByUser, e.UID)
		if err != nil {
			tx.Rollback()
			return errFactory.Wrap(errors.ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) InsertDeviceData(ctx context.Context, statusID int64, data *facts.DeviceData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	if data == nil {
		return errFactory.New(errors.ErrInvalidArgument)
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO xk_data_xo (
            xark_status_id, activities_history, ram, rom, kernel, arqc, mac
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		statusID, data.ActivityHistory, data.RAM, data.ROM,
		data.Kernel, data.Architecture, data.MAC)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) JournalCount(ctx context.Context, statusID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM xk_journal_xo WHERE xark_status_id = ?`, statusID)
}

func (r *sqliteRepository) DeviceDataCount(ctx context.Context, statusID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM xk_data_xo WHERE xark_status_id = ?`, statusID)
}

func (r *sqliteRepository) count(ctx context.Context, query string, statusID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.QueryRowContext(ctx, query, statusID).Scan(&n); err != nil {
		return 0, errors.New().Wrap(errors.ErrStorageAccess, err)
	}

	return n, nil
}

func (r *sqliteRepository) AppendException(ctx context.Context, rec ExceptionRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO xk_excepts (
            except_type, except_messg, file_name, file_line,
            except_code, tb_except, user_name
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Type, rec.Message, rec.FileName, rec.FileLine,
		rec.Code, rec.Trace, rec.UserName)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) DayRows(ctx context.Context, date int) (*DayRows, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	errFactory := errors.New()

	day := &DayRows{}

	var collectFlag, syncFlag int
	var collectDate, syncDate sql.NullString
	err := r.db.QueryRowContext(ctx, `
        SELECT id_status, serial_num, uuid, date_print, collect_status,
               collect_date, sync_status, sync_date, create_at, update_at
        FROM xk_status WHERE date_print = ?`, date).Scan(
		&day.Status.ID, &day.Status.SerialNumber, &day.Status.UUID,
		&day.Status.DatePrint, &collectFlag, &collectDate,
		&syncFlag, &syncDate, &day.Status.CreateAt, &day.Status.UpdateAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errFactory.WithData(errors.ErrStatusMissing, date)
	}
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	day.Status.CollectStatus = collectFlag == 1
	day.Status.CollectDate = collectDate.String
	day.Status.SyncStatus = syncFlag == 1
	day.Status.SyncDate = syncDate.String

	rows, err := r.db.QueryContext(ctx, `
        SELECT activity, activity_id, checksum, creation_time, file_size,
               icon_color, keep, launch_times, mime_type, mountpoint, mtime,
               share_scope, spent_times, time_stamp, title,
               title_set_by_user, uid, create_at, update_at
        FROM xk_journal_xo WHERE xark_status_id = ?`, day.Status.ID)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	defer rows.Close()

	for rows.Next() {
		var j JournalRow
		err := rows.Scan(&j.Activity, &j.ActivityID, &j.Checksum,
			&j.CreationTime, &j.FileSize, &j.IconColor, &j.Keep,
			&j.LaunchTimes, &j.MimeType, &j.Mountpoint, &j.Mtime,
			&j.ShareScope, &j.SpentTimes, &j.Timestamp, &j.Title,
			&j.TitleSetByUser, &j.UID, &j.CreateAt, &j.UpdateAt)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
		}
		day.Journal = append(day.Journal, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	var device DeviceRow
	err = r.db.QueryRowContext(ctx, `
        SELECT activities_history, ram, rom, kernel, arqc, mac,
               create_at, update_at
        FROM xk_data_xo WHERE xark_status_id = ?
        ORDER BY id_data LIMIT 1`, day.Status.ID).Scan(
		&device.ActivitiesHistory, &device.RAM, &device.ROM,
		&device.Kernel, &device.Architecture, &device.MAC,
		&device.CreateAt, &device.UpdateAt)
	if err == nil {
		day.Device = &device
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	exceptRows, err := r.db.QueryContext(ctx, `
        SELECT except_type, except_messg, file_name, file_line,
               except_code, tb_except, user_name, create_at, update_at
        FROM xk_excepts ORDER BY id_except`)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}
	defer exceptRows.Close()

	for exceptRows.Next() {
		var e ExceptionRow
		err := exceptRows.Scan(&e.Type, &e.Message, &e.FileName, &e.FileLine,
			&e.Code, &e.Trace, &e.UserName, &e.CreateAt, &e.UpdateAt)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
		}
		day.Excepts = append(day.Excepts, e)
	}
	if err := exceptRows.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageAccess, err)
	}

	return day, nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrStorageClose, err)
	}
	return nil
}
