package dto

import "github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"

// CreateTimetableEntryRequest is the payload for scheduling a new weekly session.
// Times accept HH:MM or ISO-8601 date-times; only the clock reading is kept.
type CreateTimetableEntryRequest struct {
	ClassroomID    string `json:"classroomId" validate:"required"`
	AcademicYearID string `json:"academicYearId" validate:"required"`
	SubjectID      string `json:"subjectId" validate:"required"`
	TeacherID      string `json:"teacherId" validate:"required"`
	DayOfWeek      string `json:"dayOfWeek" validate:"required,weekday"`
	StartTime      string `json:"startTime" validate:"required,timeofday"`
	EndTime        string `json:"endTime" validate:"required,timeofday"`
}

// UpdateTimetableEntryRequest is a partial patch; nil fields are left untouched.
type UpdateTimetableEntryRequest struct {
	ClassroomID    *string `json:"classroomId" validate:"omitnil,min=1"`
	AcademicYearID *string `json:"academicYearId" validate:"omitnil,min=1"`
	SubjectID      *string `json:"subjectId" validate:"omitnil,min=1"`
	TeacherID      *string `json:"teacherId" validate:"omitnil,min=1"`
	DayOfWeek      *string `json:"dayOfWeek" validate:"omitnil,weekday"`
	StartTime      *string `json:"startTime" validate:"omitnil,timeofday"`
	EndTime        *string `json:"endTime" validate:"omitnil,timeofday"`
}

// Empty reports whether the patch carries no field at all.
func (r UpdateTimetableEntryRequest) Empty() bool {
	return r.ClassroomID == nil && r.AcademicYearID == nil && r.SubjectID == nil &&
		r.TeacherID == nil && r.DayOfWeek == nil && r.StartTime == nil && r.EndTime == nil
}

// TimetableListFilter is the query string of GET /timetable-entries.
type TimetableListFilter struct {
	ClassroomID    string
	TeacherID      string
	DayOfWeek      string
	AcademicYearID string
}

// WeeklyTimetable maps every weekday to its sessions ordered by start time.
type WeeklyTimetable map[models.Weekday][]models.TimetableEntryDetail

// TimetableImportRow is one spreadsheet line; Row is the 1-based sheet row number.
type TimetableImportRow struct {
	Row     int
	Request CreateTimetableEntryRequest
}

// TimetableImportFailure explains why a spreadsheet row was rejected.
type TimetableImportFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// TimetableImportResult summarises a bulk import.
type TimetableImportResult struct {
	Created  []models.TimetableEntryDetail `json:"created"`
	Failures []TimetableImportFailure      `json:"failures,omitempty"`
}
