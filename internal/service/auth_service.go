package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	ChangePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, previousID string, next *models.RefreshToken, at time.Time) error
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string, at time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	Audience           []string
	// SingleSession revokes older sessions on every login.
	SingleSession bool
}

// AuthService authenticates accounts and manages rotating refresh sessions. Refresh tokens
// are opaque random strings handed to the client once; the database only keeps their digest.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time

	sessionEnded func(ctx context.Context, userID string)
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 15 * time.Minute
	}
	if config.RefreshTokenExpiry <= 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	return &AuthService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OnSessionEnd registers fn to run after a logout, a password change or a detected
// refresh replay.
func (s *AuthService) OnSessionEnd(fn func(ctx context.Context, userID string)) {
	s.sessionEnded = fn
}

func (s *AuthService) endSession(ctx context.Context, userID string) {
	if s.sessionEnded != nil {
		s.sessionEnded(ctx, userID)
	}
}

type session struct {
	accessToken  string
	refreshToken string
	record       *models.RefreshToken
	issuedAt     time.Time
}

// Login authenticates a user and opens a new session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID, s.now()); err != nil {
			s.logger.Warn("failed to revoke previous sessions", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	sess, err := s.newSession(user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateRefreshToken(ctx, sess.record); err != nil {
		return nil, appErrors.Internal(err, "failed to persist session")
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, sess.issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent, `{"status":"success"}`)

	return &models.LoginResponse{
		AccessToken:  sess.accessToken,
		RefreshToken: sess.refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     sess.issuedAt,
		User:         userInfo(user),
	}, nil
}

// RefreshToken rotates a session: the presented token is revoked and a new pair issued.
// Presenting an already revoked token closes every session of its owner.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	stored, err := s.repo.FindRefreshToken(ctx, hashToken(req.RefreshToken))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to fetch refresh token")
	}
	if stored.Revoked {
		return nil, s.replayDetected(ctx, stored.UserID)
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token expired")
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	sess, err := s.newSession(user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	err = s.repo.RotateRefreshToken(ctx, stored.ID, sess.record, sess.issuedAt)
	if errors.Is(err, models.ErrSessionRevoked) {
		return nil, s.replayDetected(ctx, stored.UserID)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to rotate session")
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent, `{"refresh":"rotated"}`)

	return &models.RefreshTokenResponse{
		AccessToken:  sess.accessToken,
		RefreshToken: sess.refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     sess.issuedAt,
	}, nil
}

// Logout closes the session the refresh token belongs to.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error {
	if refreshToken == "" {
		return appErrors.Clone(appErrors.ErrValidation, "refreshToken is required")
	}
	stored, err := s.repo.FindRefreshToken(ctx, hashToken(refreshToken))
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	}
	if err != nil {
		return appErrors.Internal(err, "failed to load refresh token")
	}
	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return appErrors.Internal(err, "failed to revoke refresh token")
	}
	s.audit(ctx, userID, models.AuditActionLogout, meta.IP, meta.UserAgent, `{"status":"logout"}`)
	s.endSession(ctx, userID)
	return nil
}

// ChangePassword replaces the password of userID and closes all of their sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}

	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if err != nil {
		return appErrors.Internal(err, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.ChangePassword(ctx, userID, string(hash), s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to update password")
	}
	s.audit(ctx, userID, models.AuditActionPasswordChange, "", "", `{"status":"changed"}`)
	s.endSession(ctx, userID)
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	info := userInfo(user)
	return &info, nil
}

func (s *AuthService) newSession(user *models.User, ip, userAgent string) (*session, error) {
	issuedAt := s.now()
	access, err := s.signAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	raw, err := randomToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	return &session{
		accessToken:  access,
		refreshToken: raw,
		issuedAt:     issuedAt,
		record: &models.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			TokenHash: hashToken(raw),
			ExpiresAt: issuedAt.Add(s.config.RefreshTokenExpiry),
			CreatedAt: issuedAt,
			IPAddress: ip,
			UserAgent: userAgent,
		},
	}, nil
}

func (s *AuthService) replayDetected(ctx context.Context, userID string) error {
	s.logger.Warn("revoked refresh token presented, closing all sessions", zap.String("user_id", userID))
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID, s.now()); err != nil {
		s.logger.Error("failed to revoke sessions after replay", zap.String("user_id", userID), zap.Error(err))
	}
	s.endSession(ctx, userID)
	return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token already used")
}

func (s *AuthService) audit(ctx context.Context, userID, action, ip, userAgent, payload string) {
	uid := userID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   "auth",
		ResourceID: &uid,
		NewValues:  []byte(payload),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuthService) signAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
