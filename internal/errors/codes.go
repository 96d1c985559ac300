package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrReadConfig    ErrorCode = "read_config_failed"
	ErrBindFlags     ErrorCode = "bind_flags_failed"
	ErrInvalidWindow ErrorCode = "invalid_window"

	// Identity errors
	ErrReadIdentity ErrorCode = "read_identity_failed"

	// Storage errors
	ErrStorageInit   ErrorCode = "storage_init_failed"
	ErrStorageAccess ErrorCode = "storage_access_failed"
	ErrStorageClose  ErrorCode = "storage_close_failed"
	ErrSchemaInit    ErrorCode = "schema_init_failed"
	ErrStatusMissing ErrorCode = "daily_status_missing"
	ErrAlreadyMarked ErrorCode = "status_already_marked"
	ErrNotCollected  ErrorCode = "day_not_collected"

	// Collection errors
	ErrCollectIncomplete ErrorCode = "collection_incomplete"

	// Synchronization errors
	ErrRemoteUnavailable ErrorCode = "remote_unavailable"
	ErrUploadRejected    ErrorCode = "upload_rejected"
	ErrPayloadEncode     ErrorCode = "payload_encode_failed"
	ErrSyncExhausted     ErrorCode = "sync_attempts_exhausted"

	// Operation errors
	ErrOperationCanceled ErrorCode = "operation_canceled"
	ErrShutdownFailed    ErrorCode = "shutdown_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrInvalidWindow:     "Invalid operational window",
	ErrReadIdentity:      "Failed to read device identity file",
	ErrStorageInit:       "Failed to initialize storage",
	ErrStorageAccess:     "Failed to access storage",
	ErrStorageClose:      "Failed to close storage",
	ErrSchemaInit:        "Failed to initialize database schema",
	ErrStatusMissing:     "No daily status row for date",
	ErrAlreadyMarked:     "Daily status flag already set",
	ErrNotCollected:      "Day has not been collected yet",
	ErrCollectIncomplete: "Collection pass did not persist all rows",
	ErrRemoteUnavailable: "Remote collector unavailable",
	ErrUploadRejected:    "Remote collector rejected upload",
	ErrPayloadEncode:     "Failed to encode sync payload",
	ErrSyncExhausted:     "Synchronization attempts exhausted",
	ErrOperationCanceled: "Operation canceled",
	ErrShutdownFailed:    "Shutdown failed",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
