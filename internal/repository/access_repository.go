package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

// AccessRepository answers the relationship questions behind timetable visibility.
type AccessRepository struct {
	db *sqlx.DB
}

// NewAccessRepository constructs the repository.
func NewAccessRepository(db *sqlx.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// TeacherHasClassroom reports whether the teacher is assigned to, or already timetabled in,
// the classroom for the academic year.
func (r *AccessRepository) TeacherHasClassroom(ctx context.Context, teacherID, classroomID, academicYearID string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM teacher_assignments
	WHERE teacher_id = $1 AND classroom_id = $2 AND academic_year_id = $3
) OR EXISTS (
	SELECT 1 FROM timetable_entries
	WHERE teacher_id = $1 AND classroom_id = $2 AND academic_year_id = $3
)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, teacherID, classroomID, academicYearID); err != nil {
		return false, fmt.Errorf("check teacher classroom: %w", err)
	}
	return ok, nil
}

// StudentEnrolled reports whether the student has an active enrollment in the classroom.
func (r *AccessRepository) StudentEnrolled(ctx context.Context, studentID, classroomID, academicYearID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND classroom_id = $2 AND academic_year_id = $3 AND status = $4)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, studentID, classroomID, academicYearID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check student enrollment: %w", err)
	}
	return ok, nil
}

// ParentHasEnrolledChild reports whether any child linked to the parent is actively
// enrolled in the classroom.
func (r *AccessRepository) ParentHasEnrolledChild(ctx context.Context, parentID, classroomID, academicYearID string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1
	FROM parent_students ps
	JOIN enrollments e ON e.student_id = ps.student_id
	WHERE ps.parent_id = $1 AND e.classroom_id = $2 AND e.academic_year_id = $3 AND e.status = $4
)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, parentID, classroomID, academicYearID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check parent child enrollment: %w", err)
	}
	return ok, nil
}
