package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

// SchoolRepository resolves memberships and checks that referenced records belong to a school.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

func (r *SchoolRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// MembershipFor returns the user's role and profile ids inside the school. Platform super
// admins are members of every school. Returns sql.ErrNoRows when the user has no access.
func (r *SchoolRepository) MembershipFor(ctx context.Context, userID, schoolID string) (*models.SchoolMembership, error) {
	const query = `
SELECT
	u.id AS user_id,
	s.id AS school_id,
	CASE WHEN u.role = 'SUPER_ADMIN' THEN 'SUPER_ADMIN' ELSE m.role END AS role,
	t.id AS teacher_id,
	st.id AS student_id,
	p.id AS parent_id
FROM users u
JOIN schools s ON s.id = $2
LEFT JOIN school_memberships m ON m.user_id = u.id AND m.school_id = s.id
LEFT JOIN teachers t ON t.user_id = u.id AND t.school_id = s.id
LEFT JOIN students st ON st.user_id = u.id AND st.school_id = s.id
LEFT JOIN parents p ON p.user_id = u.id AND p.school_id = s.id
WHERE u.id = $1 AND u.active = TRUE AND (m.id IS NOT NULL OR u.role = 'SUPER_ADMIN')
LIMIT 1`
	var membership models.SchoolMembership
	if err := r.db.GetContext(ctx, &membership, query, userID, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find school membership: %w", err)
	}
	return &membership, nil
}

// CurrentAcademicYear returns the school's year flagged as current.
func (r *SchoolRepository) CurrentAcademicYear(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	const query = `SELECT id, school_id, name, start_date, end_date, is_current FROM academic_years WHERE school_id = $1 AND is_current = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find current academic year: %w", err)
	}
	return &year, nil
}

// FindClassroom returns the classroom when it belongs to the school.
func (r *SchoolRepository) FindClassroom(ctx context.Context, schoolID, id string) (*models.Classroom, error) {
	const query = `SELECT id, school_id, name FROM classrooms WHERE id = $1 AND school_id = $2 LIMIT 1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find classroom: %w", err)
	}
	return &classroom, nil
}

// AcademicYearInSchool reports whether the academic year belongs to the school.
func (r *SchoolRepository) AcademicYearInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return r.existsInSchool(ctx, exec, "academic_years", schoolID, id)
}

// ClassroomInSchool reports whether the classroom belongs to the school.
func (r *SchoolRepository) ClassroomInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return r.existsInSchool(ctx, exec, "classrooms", schoolID, id)
}

// SubjectInSchool reports whether the subject belongs to the school.
func (r *SchoolRepository) SubjectInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return r.existsInSchool(ctx, exec, "subjects", schoolID, id)
}

// TeacherInSchool reports whether the teacher profile belongs to the school.
func (r *SchoolRepository) TeacherInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return r.existsInSchool(ctx, exec, "teachers", schoolID, id)
}

// table is always one of the constants above.
func (r *SchoolRepository) existsInSchool(ctx context.Context, exec sqlx.ExtContext, table, schoolID, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1 AND school_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, id, schoolID); err != nil {
		return false, fmt.Errorf("check %s scope: %w", table, err)
	}
	return exists, nil
}
