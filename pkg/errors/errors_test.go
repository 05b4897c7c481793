package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrScheduleConflict, "teacher already busy on MONDAY 08:00-09:00")

	assert.True(t, errors.Is(err, ErrScheduleConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "schedule conflict", ErrScheduleConflict.Message)
}

func TestWrapUnwrapsCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "timetable entry not found")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "timetable entry not found: sql: no rows in result set", err.Error())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("resolve membership: %w", ErrForbidden)
	assert.Same(t, ErrForbidden, FromError(wrapped))

	internal := FromError(errors.New("connection reset"))
	assert.Equal(t, ErrInternal.Code, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
}

func TestNilErrorIsSafe(t *testing.T) {
	var err *Error
	assert.Equal(t, "<nil>", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Nil(t, Clone(nil, "x"))
}
