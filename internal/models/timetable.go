package models

import (
	"errors"
	"strings"
	"time"
)

// Weekday names one of the seven days of a recurring weekly timetable.
type Weekday string

// Weekday values, in display order.
const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ErrInvalidWeekday is returned for an unknown day name.
var ErrInvalidWeekday = errors.New("invalid day of week")

// ErrInvalidTimeRange is returned when a range does not start strictly before it ends.
var ErrInvalidTimeRange = errors.New("start time must be before end time")

// AllWeekdays returns the seven weekdays from Monday to Sunday.
func AllWeekdays() []Weekday {
	out := make([]Weekday, len(weekdays))
	copy(out, weekdays)
	return out
}

// ParseWeekday resolves a day name case-insensitively.
func ParseWeekday(raw string) (Weekday, error) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	if !day.Valid() {
		return "", ErrInvalidWeekday
	}
	return day, nil
}

// Valid reports whether d is one of the seven known days.
func (d Weekday) Valid() bool {
	for _, w := range weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// Index returns the zero-based position of d in the Monday-first week, or -1.
func (d Weekday) Index() int {
	for i, w := range weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

// TimeRange is a half-open interval [Start, End) on a weekday.
type TimeRange struct {
	Day   Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// NewTimeRange validates and builds a TimeRange.
func NewTimeRange(day Weekday, start, end TimeOfDay) (TimeRange, error) {
	if !day.Valid() {
		return TimeRange{}, ErrInvalidWeekday
	}
	if start >= end {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Day: day, Start: start, End: end}, nil
}

// Overlaps reports whether both ranges share a weekday and intersect. Ranges that only
// touch (one ends when the other starts) do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	if r.Day != other.Day {
		return false
	}
	return r.Start < other.End && other.Start < r.End
}

// TimetableEntry is one recurring weekly class session.
type TimetableEntry struct {
	ID             string    `db:"id" json:"id"`
	ClassroomID    string    `db:"classroom_id" json:"classroomId"`
	AcademicYearID string    `db:"academic_year_id" json:"academicYearId"`
	SubjectID      string    `db:"subject_id" json:"subjectId"`
	TeacherID      string    `db:"teacher_id" json:"teacherId"`
	DayOfWeek      Weekday   `db:"day_of_week" json:"dayOfWeek"`
	StartTime      TimeOfDay `db:"start_time" json:"startTime"`
	EndTime        TimeOfDay `db:"end_time" json:"endTime"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Range returns the entry's weekday interval.
func (e TimetableEntry) Range() TimeRange {
	return TimeRange{Day: e.DayOfWeek, Start: e.StartTime, End: e.EndTime}
}

// TimetableEntryDetail enriches an entry with display names.
type TimetableEntryDetail struct {
	TimetableEntry
	ClassroomName string `db:"classroom_name" json:"classroomName"`
	SubjectName   string `db:"subject_name" json:"subjectName"`
	TeacherName   string `db:"teacher_name" json:"teacherName"`
}

// TimetableFilter narrows entry listings. SchoolID is mandatory for every query.
type TimetableFilter struct {
	SchoolID       string
	AcademicYearID string
	ClassroomID    string
	TeacherID      string
	DayOfWeek      Weekday
}

// SlotQuery selects the entries that compete with a candidate for one resource.
type SlotQuery struct {
	AcademicYearID string
	DayOfWeek      Weekday
	ClassroomID    string
	TeacherID      string
	ExcludeID      string
}

// Conflicting resources.
const (
	ConflictResourceClassroom = "CLASSROOM"
	ConflictResourceTeacher   = "TEACHER"
)

// TimetableConflict describes an existing entry colliding with a candidate.
type TimetableConflict struct {
	Resource  string    `json:"resource"`
	EntryID   string    `json:"entryId"`
	DayOfWeek Weekday   `json:"dayOfWeek"`
	StartTime TimeOfDay `json:"startTime"`
	EndTime   TimeOfDay `json:"endTime"`
}

// ErrSlotTaken is reported by storage when an exclusion constraint or a serialization
// failure rejects a write. Resource is empty when storage cannot tell which one.
type ErrSlotTaken struct {
	Resource string
}

func (e *ErrSlotTaken) Error() string {
	switch e.Resource {
	case ConflictResourceClassroom:
		return "classroom slot already taken"
	case ConflictResourceTeacher:
		return "teacher slot already taken"
	default:
		return "timetable slot already taken"
	}
}
