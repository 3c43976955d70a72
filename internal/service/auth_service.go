package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type schoolSelector interface {
	Schools(ctx context.Context, principal *models.Principal) ([]string, error)
	SelectSchool(ctx context.Context, principal *models.Principal, sess SessionAttributes, schoolID string) (*dto.SessionSchool, error)
	Clear(sess SessionAttributes)
}

type sessionActivityLogger interface {
	LogUserLogin(ctx context.Context, tenantID string, user *models.User, req *models.RequestContext) error
	LogUserLogout(ctx context.Context, tenantID string, user *models.User, req *models.RequestContext) error
}

// AuthSession is the session surface login and logout touch.
type AuthSession interface {
	SessionAttributes
	Destroy()
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          []string
}

// AuthService issues and validates access tokens and records sign-in activity.
type AuthService struct {
	repo      authUserRepository
	schools   schoolSelector
	activity  sessionActivityLogger
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance. schools and activity may be nil.
func NewAuthService(repo authUserRepository, schools schoolSelector, activity sessionActivityLogger, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	return &AuthService{repo: repo, schools: schools, activity: activity, validator: validate, logger: logger, config: config}
}

// Login authenticates a user. A user belonging to exactly one school has it selected in
// sess straight away and the sign-in is recorded there.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, sess AuthSession, rc *models.RequestContext) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	issuedAt := time.Now().UTC()
	accessToken, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	resp := &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User: models.UserInfo{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Role:      user.Role,
		},
	}

	if sess != nil && s.schools != nil {
		s.schools.Clear(sess)
		resp.SchoolID = s.autoSelect(ctx, user, sess)
	}
	if resp.SchoolID != "" && s.activity != nil {
		if err := s.activity.LogUserLogin(ctx, resp.SchoolID, user, rc); err != nil {
			s.logger.Warn("failed to record login activity", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return resp, nil
}

func (s *AuthService) autoSelect(ctx context.Context, user *models.User, sess AuthSession) string {
	principal := &models.Principal{UserID: user.ID, Authority: string(user.Role), User: user}
	schools, err := s.schools.Schools(ctx, principal)
	if err != nil {
		s.logger.Warn("failed to list schools on login", zap.String("user_id", user.ID), zap.Error(err))
		return ""
	}
	if len(schools) != 1 {
		return ""
	}
	selected, err := s.schools.SelectSchool(ctx, principal, sess, schools[0])
	if err != nil {
		s.logger.Warn("failed to select school on login", zap.String("user_id", user.ID), zap.Error(err))
		return ""
	}
	return selected.SchoolID
}

// Logout records the sign-out in the selected school and destroys the session.
func (s *AuthService) Logout(ctx context.Context, principal *models.Principal, sess AuthSession, rc *models.RequestContext) error {
	if principal == nil {
		return appErrors.ErrUnauthenticated
	}
	if sess == nil {
		return nil
	}
	if tenantID, err := tenant.Resolve(sess); err == nil && s.activity != nil {
		user := principal.User
		if user == nil {
			user = &models.User{ID: principal.UserID}
		}
		if err := s.activity.LogUserLogout(ctx, tenantID, user, rc); err != nil {
			s.logger.Warn("failed to record logout activity", zap.String("user_id", principal.UserID), zap.Error(err))
		}
	}
	sess.Destroy()
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
