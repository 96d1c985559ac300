package store

import (
	"database/sql"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS schema_versions (
	    version     INTEGER PRIMARY KEY,
	    applied_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS xk_status (
	    id_status       INTEGER PRIMARY KEY AUTOINCREMENT,
	    serial_num      TEXT NOT NULL,
	    uuid            TEXT NOT NULL,
	    date_print      INTEGER NOT NULL UNIQUE,
	    collect_status  INTEGER NOT NULL DEFAULT 0 CHECK (collect_status IN (0, 1)),
	    collect_date    TEXT,
	    sync_status     INTEGER NOT NULL DEFAULT 0 CHECK (sync_status IN (0, 1)),
	    sync_date       TEXT,
	    create_at       TEXT NOT NULL DEFAULT (datetime('now')),
	    update_at       TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS xk_journal_xo (
	    id_journal        INTEGER PRIMARY KEY AUTOINCREMENT,
	    xark_status_id    INTEGER NOT NULL REFERENCES xk_status(id_status),
	    activity          TEXT NOT NULL,
	    activity_id       TEXT NOT NULL,
	    checksum          TEXT NOT NULL,
	    creation_time     TEXT NOT NULL,
	    file_size         TEXT NOT NULL,
	    icon_color        TEXT NOT NULL,
	    keep              TEXT NOT NULL,
	    launch_times      TEXT NOT NULL,
	    mime_type         TEXT NOT NULL,
	    mountpoint        TEXT NOT NULL,
	    mtime             TEXT NOT NULL,
	    share_scope       TEXT NOT NULL,
	    spent_times       TEXT NOT NULL,
	    time_stamp        TEXT NOT NULL,
	    title             TEXT NOT NULL,
	    title_set_by_user TEXT NOT NULL,
	    uid               TEXT NOT NULL,
	    create_at         TEXT NOT NULL DEFAULT (datetime('now')),
	    update_at         TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS xk_data_xo (
	    id_data            INTEGER PRIMARY KEY AUTOINCREMENT,
	    xark_status_id     INTEGER NOT NULL REFERENCES xk_status(id_status),
	    activities_history TEXT NOT NULL,
	    ram                TEXT NOT NULL,
	    rom                TEXT NOT NULL,
	    kernel             TEXT NOT NULL,
	    arqc               TEXT NOT NULL,
	    mac                TEXT NOT NULL,
	    create_at          TEXT NOT NULL DEFAULT (datetime('now')),
	    update_at          TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS xk_excepts (
	    id_except    INTEGER PRIMARY KEY AUTOINCREMENT,
	    except_type  TEXT NOT NULL,
	    except_messg TEXT NOT NULL,
	    file_name    TEXT NOT NULL,
	    file_line    TEXT NOT NULL,
	    except_code  TEXT NOT NULL,
	    tb_except    TEXT NOT NULL,
	    user_name    TEXT NOT NULL,
	    create_at    TEXT NOT NULL DEFAULT (datetime('now')),
	    update_at    TEXT NOT NULL DEFAULT (datetime('now'))
	);`

	recordVersionSQL = `
	INSERT INTO schema_versions (version, applied_at)
	VALUES (?, datetime('now'))
	ON CONFLICT(version) DO NOTHING`
)

// initSchema creates the database schema inside a single transaction.
func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrSchemaInit, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(errors.ErrSchemaInit, err)
	}
	if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
		return errFactory.Wrap(errors.ErrSchemaInit, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrSchemaInit, err)
	}
	committed = true

	return nil
}
