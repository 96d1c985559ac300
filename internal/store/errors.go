package store

import "codeberg.org/kaibil/xark/internal/errors"

const (
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")
)
