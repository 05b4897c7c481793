package models

import "time"

// AcademicYear partitions enrollments, assignments and timetable entries of a school.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"schoolId"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	IsCurrent bool      `db:"is_current" json:"isCurrent"`
}

// Classroom belongs to exactly one school.
type Classroom struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"schoolId"`
	Name     string `db:"name" json:"name"`
}

// EnrollmentStatusActive marks an enrollment that grants classroom visibility.
const EnrollmentStatusActive = "ACTIVE"
