package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmailIgnoresCase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "awa@ecole.test", "hash", "Awa Diallo", string(models.RoleUser), true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(email) = lower($1) LIMIT 1")).
		WithArgs("Awa@Ecole.test").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Awa@Ecole.test")
	require.NoError(t, err)
	assert.Equal(t, "Awa Diallo", user.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshTokenStoresDigest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens (id, user_id, token_hash")).
		WithArgs("rt1", "u1", "digest", sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "rt1", UserID: "u1", TokenHash: "digest", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRefreshTokenNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindRefreshToken(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRotateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE")).
		WithArgs("rt1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	next := &models.RefreshToken{UserID: "u1", TokenHash: "next", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.RotateRefreshToken(context.Background(), "rt1", next, now))
	assert.NotEmpty(t, next.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshTokenDetectsReplay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RotateRefreshToken(context.Background(), "rt1", &models.RefreshToken{UserID: "u1", TokenHash: "next"}, time.Now())
	assert.ErrorIs(t, err, models.ErrSessionRevoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2")).
		WithArgs("u1", "new-hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1")).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ChangePassword(context.Background(), "u1", "new-hash", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordUnknownUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET password_hash").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ChangePassword(context.Background(), "ghost", "hash", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateAuditLogCarriesSchool(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	userID, schoolID, entryID := "u1", "school-1", "e1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (id, user_id, school_id, action")).
		WithArgs(sqlmock.AnyArg(), &userID, &schoolID, models.AuditActionTimetableCreate, "timetable_entry", &entryID, sqlmock.AnyArg(), []byte(`{}`), "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{
		UserID:     &userID,
		SchoolID:   &schoolID,
		Action:     models.AuditActionTimetableCreate,
		Resource:   "timetable_entry",
		ResourceID: &entryID,
		NewValues:  []byte(`{}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
