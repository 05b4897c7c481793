package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

func TestSchoolRepositoryMembershipFor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "school_id", "role", "teacher_id", "student_id", "parent_id"}).
		AddRow("u1", "school-1", "TEACHER", "t1", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN u.role = 'SUPER_ADMIN' THEN 'SUPER_ADMIN' ELSE m.role END AS role")).
		WithArgs("u1", "school-1").
		WillReturnRows(rows)

	membership, err := repo.MembershipFor(context.Background(), "u1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, membership.Role)
	require.NotNil(t, membership.TeacherID)
	assert.Equal(t, "t1", *membership.TeacherID)
	assert.Nil(t, membership.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryMembershipForNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery("FROM users u").WithArgs("u1", "school-2").WillReturnError(sql.ErrNoRows)

	_, err := repo.MembershipFor(context.Background(), "u1", "school-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSchoolRepositoryCurrentAcademicYear(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "school_id", "name", "start_date", "end_date", "is_current"}).
		AddRow("y1", "school-1", "2024-2025", start, start.AddDate(1, 0, 0), true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_years WHERE school_id = $1 AND is_current = TRUE")).
		WithArgs("school-1").
		WillReturnRows(rows)

	year, err := repo.CurrentAcademicYear(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "y1", year.ID)
	assert.True(t, year.IsCurrent)
}

func TestSchoolRepositoryReferenceScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM classrooms WHERE id = $1 AND school_id = $2)")).
		WithArgs("c1", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM teachers WHERE id = $1 AND school_id = $2)")).
		WithArgs("t9", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.ClassroomInSchool(context.Background(), nil, "school-1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TeacherInSchool(context.Background(), nil, "school-1", "t9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
