package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type timetableSlotReader interface {
	ListSlotEntries(ctx context.Context, exec sqlx.ExtContext, q models.SlotQuery) ([]models.TimetableEntry, error)
}

// ConflictResult reports which resources a candidate entry would double-book.
type ConflictResult struct {
	ClassroomConflict bool
	TeacherConflict   bool
	Conflicts         []models.TimetableConflict
}

// HasConflict reports whether either resource is taken.
func (r ConflictResult) HasConflict() bool {
	return r.ClassroomConflict || r.TeacherConflict
}

// Err returns the client facing conflict error, naming the classroom first when both
// resources collide. It is nil when there is no conflict.
func (r ConflictResult) Err() error {
	if !r.HasConflict() {
		return nil
	}
	resource := models.ConflictResourceTeacher
	if r.ClassroomConflict {
		resource = models.ConflictResourceClassroom
	}
	for _, c := range r.Conflicts {
		if c.Resource == resource {
			return conflictError(resource, &c)
		}
	}
	return conflictError(resource, nil)
}

// Resource returns the resource reported by Err.
func (r ConflictResult) Resource() string {
	switch {
	case r.ClassroomConflict:
		return models.ConflictResourceClassroom
	case r.TeacherConflict:
		return models.ConflictResourceTeacher
	default:
		return ""
	}
}

func (r *ConflictResult) add(resource string, conflicts []models.TimetableConflict) {
	if len(conflicts) == 0 {
		return
	}
	switch resource {
	case models.ConflictResourceClassroom:
		r.ClassroomConflict = true
	case models.ConflictResourceTeacher:
		r.TeacherConflict = true
	}
	r.Conflicts = append(r.Conflicts, conflicts...)
}

// ConflictChecker detects classroom and teacher double-booking for a candidate entry.
// It only reads; callers decide whether to write.
type ConflictChecker struct {
	entries timetableSlotReader
}

// NewConflictChecker constructs a checker over stored entries.
func NewConflictChecker(entries timetableSlotReader) *ConflictChecker {
	return &ConflictChecker{entries: entries}
}

// Check compares the candidate against entries sharing its classroom or its teacher in
// the same academic year and weekday. excludeID leaves one stored entry out, so an
// update never collides with itself.
func (c *ConflictChecker) Check(ctx context.Context, exec sqlx.ExtContext, candidate models.TimetableEntry, excludeID string) (ConflictResult, error) {
	var result ConflictResult
	slot := candidate.Range()

	byClassroom, err := c.entries.ListSlotEntries(ctx, exec, models.SlotQuery{
		AcademicYearID: candidate.AcademicYearID,
		DayOfWeek:      candidate.DayOfWeek,
		ClassroomID:    candidate.ClassroomID,
		ExcludeID:      excludeID,
	})
	if err != nil {
		return result, err
	}
	result.add(models.ConflictResourceClassroom, overlapping(slot, models.ConflictResourceClassroom, byClassroom))

	byTeacher, err := c.entries.ListSlotEntries(ctx, exec, models.SlotQuery{
		AcademicYearID: candidate.AcademicYearID,
		DayOfWeek:      candidate.DayOfWeek,
		TeacherID:      candidate.TeacherID,
		ExcludeID:      excludeID,
	})
	if err != nil {
		return result, err
	}
	result.add(models.ConflictResourceTeacher, overlapping(slot, models.ConflictResourceTeacher, byTeacher))

	return result, nil
}

// CheckAgainst runs the same rules against an in-memory set, used for rows of one
// import batch that are not stored yet.
func CheckAgainst(candidate models.TimetableEntry, others []models.TimetableEntry) ConflictResult {
	var result ConflictResult
	slot := candidate.Range()
	var sameClassroom, sameTeacher []models.TimetableEntry
	for _, other := range others {
		if other.AcademicYearID != candidate.AcademicYearID {
			continue
		}
		if other.ClassroomID == candidate.ClassroomID {
			sameClassroom = append(sameClassroom, other)
		}
		if other.TeacherID == candidate.TeacherID {
			sameTeacher = append(sameTeacher, other)
		}
	}
	result.add(models.ConflictResourceClassroom, overlapping(slot, models.ConflictResourceClassroom, sameClassroom))
	result.add(models.ConflictResourceTeacher, overlapping(slot, models.ConflictResourceTeacher, sameTeacher))
	return result
}

func overlapping(slot models.TimeRange, resource string, entries []models.TimetableEntry) []models.TimetableConflict {
	var out []models.TimetableConflict
	for _, entry := range entries {
		if !slot.Overlaps(entry.Range()) {
			continue
		}
		out = append(out, models.TimetableConflict{
			Resource:  resource,
			EntryID:   entry.ID,
			DayOfWeek: entry.DayOfWeek,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
		})
	}
	return out
}

func conflictError(resource string, with *models.TimetableConflict) error {
	subject := "timetable"
	switch resource {
	case models.ConflictResourceClassroom:
		subject = "classroom"
	case models.ConflictResourceTeacher:
		subject = "teacher"
	}
	message := fmt.Sprintf("%s conflict: %s is already booked at that time", subject, subject)
	if with != nil {
		message = fmt.Sprintf("%s conflict: %s is already booked on %s %s-%s", subject, subject, with.DayOfWeek, with.StartTime, with.EndTime)
	}
	if subject == "timetable" {
		message = "schedule conflict: the slot was taken by a concurrent change, retry the request"
	}
	return appErrors.Clone(appErrors.ErrScheduleConflict, message)
}
