package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type membershipStore interface {
	MembershipFor(ctx context.Context, userID, schoolID string) (*models.SchoolMembership, error)
	CurrentAcademicYear(ctx context.Context, schoolID string) (*models.AcademicYear, error)
	AcademicYearInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error)
}

// MembershipService turns an authenticated user and a requested school into an Identity.
type MembershipService struct {
	store  membershipStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewMembershipService constructs the service. cache may be nil.
func NewMembershipService(store membershipStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{store: store, cache: cache, ttl: ttl, logger: logger}
}

func membershipCacheKey(userID, schoolID string) string {
	return fmt.Sprintf("membership:%s:%s", userID, schoolID)
}

// Resolve returns the caller's identity inside the school, or 403 when the user is not
// a member.
func (s *MembershipService) Resolve(ctx context.Context, userID, schoolID string) (models.Identity, error) {
	membership, err := Remember(ctx, s.cache, membershipCacheKey(userID, schoolID), s.ttl,
		func(ctx context.Context) (models.SchoolMembership, error) {
			m, err := s.store.MembershipFor(ctx, userID, schoolID)
			if err != nil {
				return models.SchoolMembership{}, err
			}
			return *m, nil
		})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, appErrors.Clone(appErrors.ErrForbidden, "you are not a member of this school")
	}
	if err != nil {
		return models.Identity{}, appErrors.Internal(err, "failed to resolve school membership")
	}
	return models.IdentityFromMembership(membership), nil
}

// Invalidate forgets every cached membership of the user so that role changes apply
// from their next request.
func (s *MembershipService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("membership:%s:*", userID)); err != nil {
		s.logger.Debug("membership cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// ResolveAcademicYear returns requested when it belongs to the school, otherwise the
// school's current year. Both failures are 404.
func (s *MembershipService) ResolveAcademicYear(ctx context.Context, schoolID, requested string) (string, error) {
	if requested != "" {
		ok, err := s.store.AcademicYearInSchool(ctx, nil, schoolID, requested)
		if err != nil {
			return "", appErrors.Internal(err, "failed to load academic year")
		}
		if !ok {
			return "", appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return requested, nil
	}
	year, err := s.store.CurrentAcademicYear(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return "", appErrors.Internal(err, "failed to load current academic year")
	}
	return year.ID, nil
}
