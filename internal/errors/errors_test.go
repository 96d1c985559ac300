package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/kaibil/xark/internal/errors"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("pid file busy")
	err := errors.New().Wrap(errors.ErrShutdownFailed, cause)

	assert.Equal(t, errors.ErrShutdownFailed, err.Code())
	assert.Equal(t, "Shutdown failed: pid file busy", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	err := errors.New().New(errors.ErrSyncExhausted)
	assert.Equal(t, errors.ErrSyncExhausted, errors.CodeOf(err))

	wrapped := errors.New().Wrap(errors.ErrOperationCanceled, stderrors.New("context deadline exceeded"))
	assert.Equal(t, errors.ErrOperationCanceled, errors.CodeOf(wrapped))

	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")),
		"a foreign error maps to the internal code")
}

func TestWithDataInMessage(t *testing.T) {
	err := errors.New().WithData(errors.ErrSyncExhausted, 3)
	assert.Equal(t, "Synchronization attempts exhausted: 3", err.Error())
	assert.Equal(t, 3, err.GetData())
}

func TestGetErrorMessageFallsBackToCode(t *testing.T) {
	assert.Equal(t, "no_such_code", errors.GetErrorMessage(errors.ErrorCode("no_such_code")))
}
