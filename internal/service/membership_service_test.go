package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type memoryCacheRepo struct {
	values map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.values, key)
		}
	}
	return nil
}

type membershipStoreStub struct {
	memberships map[string]models.SchoolMembership
	current     map[string]models.AcademicYear
	years       map[string]string
	lookups     int
	err         error
}

func (s *membershipStoreStub) MembershipFor(ctx context.Context, userID, schoolID string) (*models.SchoolMembership, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.memberships[userID+"|"+schoolID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (s *membershipStoreStub) CurrentAcademicYear(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	year, ok := s.current[schoolID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &year, nil
}

func (s *membershipStoreStub) AcademicYearInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return s.years[id] == schoolID, nil
}

func newMembershipStoreStub() *membershipStoreStub {
	teacherID := "t1"
	return &membershipStoreStub{
		memberships: map[string]models.SchoolMembership{
			"u1|school-1": {UserID: "u1", SchoolID: "school-1", Role: models.RoleTeacher, TeacherID: &teacherID},
		},
		current: map[string]models.AcademicYear{"school-1": {ID: "y1", SchoolID: "school-1", IsCurrent: true}},
		years:   map[string]string{"y1": "school-1", "y0": "school-1", "y9": "school-2"},
	}
}

func TestMembershipServiceResolveCaches(t *testing.T) {
	store := newMembershipStoreStub()
	repo := newMemoryCacheRepo()
	svc := NewMembershipService(store, NewCacheService(repo, nil, time.Minute, nil, true), time.Minute, nil)
	ctx := context.Background()

	identity, err := svc.Resolve(ctx, "u1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, identity.Role)
	assert.Equal(t, "t1", identity.TeacherID)
	assert.Contains(t, repo.values, "membership:u1:school-1")

	_, err = svc.Resolve(ctx, "u1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups)

	svc.Invalidate(ctx, "u1")
	assert.Empty(t, repo.values)
	_, err = svc.Resolve(ctx, "u1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lookups)
}

func TestMembershipServiceResolveNonMember(t *testing.T) {
	svc := NewMembershipService(newMembershipStoreStub(), nil, 0, nil)

	_, err := svc.Resolve(context.Background(), "u1", "school-2")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, "you are not a member of this school", appErr.Message)
}

func TestMembershipServiceResolveStorageFailure(t *testing.T) {
	store := newMembershipStoreStub()
	store.err = errors.New("db down")
	svc := NewMembershipService(store, nil, 0, nil)

	_, err := svc.Resolve(context.Background(), "u1", "school-1")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestMembershipServiceResolveAcademicYear(t *testing.T) {
	svc := NewMembershipService(newMembershipStoreStub(), nil, 0, nil)
	ctx := context.Background()

	year, err := svc.ResolveAcademicYear(ctx, "school-1", "")
	require.NoError(t, err)
	assert.Equal(t, "y1", year)

	year, err = svc.ResolveAcademicYear(ctx, "school-1", "y0")
	require.NoError(t, err)
	assert.Equal(t, "y0", year)

	_, err = svc.ResolveAcademicYear(ctx, "school-1", "y9")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveAcademicYear(ctx, "school-3", "")
	assert.Equal(t, "academic year not found", appErrors.FromError(err).Message)
}
