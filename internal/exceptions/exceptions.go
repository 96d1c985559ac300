package exceptions

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/logger"
	"codeberg.org/kaibil/xark/internal/store"
)

// Capture appends an exception record for err to the store: error code,
// message, the caller's file and line, the caller's function, the current
// stack and the acting user. Capture itself never fails the run; a store
// that cannot take the record is only logged.
func Capture(ctx context.Context, repo store.Repository, err error) {
	rec := store.ExceptionRow{
		Type:     string(errors.CodeOf(err)),
		Message:  err.Error(),
		FileName: "unknown",
		FileLine: "0",
		Code:     "unknown",
		Trace:    string(debug.Stack()),
		UserName: actingUser(),
	}

	if pc, file, line, ok := runtime.Caller(1); ok {
		rec.FileName = file
		rec.FileLine = strconv.Itoa(line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			rec.Code = fn.Name()
		}
	}

	if appendErr := repo.AppendException(ctx, rec); appendErr != nil {
		logger.Error().Err(appendErr).Msg("Failed to record exception")
	}
}

func actingUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}

	return "unknown"
}
