package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

func TestValidatorTimetableTags(t *testing.T) {
	v := NewValidator()

	err := v.Struct(dto.CreateTimetableEntryRequest{
		ClassroomID:    "c1",
		AcademicYearID: "y1",
		SubjectID:      "s1",
		TeacherID:      "t1",
		DayOfWeek:      "monday",
		StartTime:      "2024-09-02T08:00:00.000Z",
		EndTime:        "09:00",
	})
	assert.NoError(t, err)

	err = v.Struct(dto.CreateTimetableEntryRequest{DayOfWeek: "FUNDAY", StartTime: "25:00"})
	require.Error(t, err)
	mapped := validationError(err)
	appErr := appErrors.FromError(mapped)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "classroomId is required")
	assert.Contains(t, appErr.Message, "dayOfWeek must be one of MONDAY..SUNDAY")
	assert.Contains(t, appErr.Message, "startTime must be a time")
}

func TestValidatorPatchSkipsNilFields(t *testing.T) {
	v := NewValidator()
	subject := "s2"
	assert.NoError(t, v.Struct(dto.UpdateTimetableEntryRequest{SubjectID: &subject}))

	bad := "noon-ish"
	assert.Error(t, v.Struct(dto.UpdateTimetableEntryRequest{EndTime: &bad}))
}
