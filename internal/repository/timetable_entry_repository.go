package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

const (
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"

	classroomOverlapConstraint = "timetable_entries_classroom_no_overlap"
	teacherOverlapConstraint   = "timetable_entries_teacher_no_overlap"
)

const timetableEntryColumns = `te.id, te.classroom_id, te.academic_year_id, te.subject_id, te.teacher_id, te.day_of_week, te.start_time, te.end_time, te.created_at, te.updated_at`

const timetableDetailSelect = `
SELECT ` + timetableEntryColumns + `,
	c.name AS classroom_name,
	s.name AS subject_name,
	u.full_name AS teacher_name
FROM timetable_entries te
JOIN classrooms c ON c.id = te.classroom_id
JOIN subjects s ON s.id = te.subject_id
JOIN teachers t ON t.id = te.teacher_id
JOIN users u ON u.id = t.user_id`

const timetableDayOrder = `array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY']::text[], te.day_of_week)`

// TimetableEntryRepository persists weekly timetable entries. Every read and delete is
// scoped to a school through the owning classroom.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs the repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns detailed entries of one school ordered by weekday then start time.
func (r *TimetableEntryRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	if filter.SchoolID == "" {
		return nil, fmt.Errorf("list timetable entries: school id is required")
	}
	conditions := []string{"c.school_id = ?"}
	args := []interface{}{filter.SchoolID}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, "te.academic_year_id = ?")
		args = append(args, filter.AcademicYearID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, "te.classroom_id = ?")
		args = append(args, filter.ClassroomID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, "te.teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, "te.day_of_week = ?")
		args = append(args, string(filter.DayOfWeek))
	}

	query := timetableDetailSelect + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY " + timetableDayOrder + ", te.start_time, te.id"

	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// FindByID returns the entry when it belongs to the school, or sql.ErrNoRows.
func (r *TimetableEntryRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (*models.TimetableEntryDetail, error) {
	query := timetableDetailSelect + ` WHERE te.id = $1 AND c.school_id = $2 LIMIT 1`
	var entry models.TimetableEntryDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find timetable entry: %w", err)
	}
	return &entry, nil
}

// ListSlotEntries returns the entries sharing the academic year, the weekday and the
// classroom or teacher of q, leaving out q.ExcludeID.
func (r *TimetableEntryRepository) ListSlotEntries(ctx context.Context, exec sqlx.ExtContext, q models.SlotQuery) ([]models.TimetableEntry, error) {
	conditions := []string{"te.academic_year_id = $1", "te.day_of_week = $2"}
	args := []interface{}{q.AcademicYearID, string(q.DayOfWeek)}
	switch {
	case q.ClassroomID != "":
		args = append(args, q.ClassroomID)
		conditions = append(conditions, fmt.Sprintf("te.classroom_id = $%d", len(args)))
	case q.TeacherID != "":
		args = append(args, q.TeacherID)
		conditions = append(conditions, fmt.Sprintf("te.teacher_id = $%d", len(args)))
	default:
		return nil, fmt.Errorf("list slot entries: classroom or teacher is required")
	}
	if q.ExcludeID != "" {
		args = append(args, q.ExcludeID)
		conditions = append(conditions, fmt.Sprintf("te.id <> $%d", len(args)))
	}

	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries te WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY te.start_time`

	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list slot entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry. Overlap rejections by the database come back as
// *models.ErrSlotTaken.
func (r *TimetableEntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetable_entries (id, classroom_id, academic_year_id, subject_id, teacher_id, day_of_week, start_time, end_time, created_at, updated_at)
VALUES (:id, :classroom_id, :academic_year_id, :subject_id, :teacher_id, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return translateTimetableWriteError("create timetable entry", err)
	}
	return nil
}

// Update rewrites every mutable column of the entry.
func (r *TimetableEntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET classroom_id = :classroom_id, academic_year_id = :academic_year_id, subject_id = :subject_id, teacher_id = :teacher_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry)
	if err != nil {
		return translateTimetableWriteError("update timetable entry", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the entry when it belongs to the school, otherwise sql.ErrNoRows.
func (r *TimetableEntryRepository) Delete(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) error {
	const query = `DELETE FROM timetable_entries te USING classrooms c WHERE te.id = $1 AND c.id = te.classroom_id AND c.school_id = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, id, schoolID)
	if err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func translateTimetableWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqExclusionViolation:
			switch pqErr.Constraint {
			case classroomOverlapConstraint:
				return &models.ErrSlotTaken{Resource: models.ConflictResourceClassroom}
			case teacherOverlapConstraint:
				return &models.ErrSlotTaken{Resource: models.ConflictResourceTeacher}
			}
			return &models.ErrSlotTaken{}
		case pqSerializationFailure:
			return &models.ErrSlotTaken{}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
