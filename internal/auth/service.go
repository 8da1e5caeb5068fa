package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharath018/field-visit-backend/config"
	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"github.com/sharath018/field-visit-backend/internal/employee"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("your account is inactive")
	ErrEmployeeIDTaken    = errors.New("this employee ID is already registered")
	ErrAccountExists      = errors.New("username or email already in use")
	ErrInvalidToken       = errors.New("invalid token")
)

// RegistrationError explains why an employee id cannot back a new account.
type RegistrationError struct {
	Reason  string
	Message string
}

func (e *RegistrationError) Error() string { return e.Message }

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, in LoginInput) (*TokenPair, *User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	ParseAccessToken(token string) (uint, error)
	GetUserByID(ctx context.Context, userID uint) (User, error)
	UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*User, error)
	EmployeeIDAvailable(ctx context.Context, employeeID string) (bool, error)
}

type service struct {
	repo          Repository
	employees     employee.Service
	audit         auditlog.Service
	logger        *zap.Logger
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewService(r Repository, employees employee.Service, audit auditlog.Service, cfg *config.Config, logger *zap.Logger) Service {
	return &service{
		repo:          r,
		employees:     employees,
		audit:         audit,
		logger:        logger,
		accessSecret:  cfg.JWTAccessSecret,
		refreshSecret: cfg.JWTRefreshSecret,
		accessTTL:     time.Duration(cfg.JWTAccessTTLHours) * time.Hour,
		refreshTTL:    time.Duration(cfg.JWTRefreshTTLHours) * time.Hour,
	}
}

// =============================
// Register
// =============================

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Role        string
	EmployeeID  string
	Designation string
	ClientIP    string
}

// Register creates an account backed by a registry employee. Admins must
// hold a District Collector employee id; users must register under the
// position their employee id is recorded with.
func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	role := visit.NormalizeRole(in.Role)
	if role == "" {
		return nil, &RegistrationError{Reason: "invalid_role", Message: "role must be Admin or User"}
	}

	designation := visit.DesignationCollector
	if role == visit.RoleUser {
		d, ok := visit.ParseDesignation(in.Designation)
		if !ok || !d.IsAssignable() {
			return nil, &RegistrationError{Reason: "invalid_designation", Message: "please select your position"}
		}
		designation = d
	}

	check, err := s.employees.Verify(ctx, in.EmployeeID, string(designation))
	if err != nil {
		return nil, err
	}
	if !check.IsValid {
		if role == visit.RoleAdmin && check.Reason == employee.ReasonWrongPosition {
			check.Message = "Only District Collector employees can register as Admin"
		}
		return nil, &RegistrationError{Reason: check.Reason, Message: check.Message}
	}

	employeeID := employee.NormalizeID(in.EmployeeID)
	taken, err := s.repo.ExistsByEmployeeID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmployeeIDTaken
	}
	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, in.Username, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         role.Label(),
		Designation:  designation,
		EmployeeID:   employeeID,
		Status:       "active",
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, &user.ID, "USER_REGISTERED", map[string]interface{}{
		"username":    user.Username,
		"role":        user.Role,
		"designation": user.Designation,
	}, in.ClientIP, auditlog.StatusSuccess)
	return user, nil
}

// =============================
// Login
// =============================

type LoginInput struct {
	Login    string
	Password string
	ClientIP string
}

func (s *service) Login(ctx context.Context, in LoginInput) (*TokenPair, *User, error) {
	user, err := s.repo.FindByLogin(ctx, in.Login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.record(ctx, nil, "LOGIN_FAILED", map[string]interface{}{"login": in.Login, "reason": "not found"}, in.ClientIP, auditlog.StatusFailure)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.record(ctx, &user.ID, "LOGIN_FAILED", map[string]interface{}{"login": in.Login, "reason": "bad password"}, in.ClientIP, auditlog.StatusFailure)
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status != "active" {
		return nil, nil, ErrAccountInactive
	}

	access, err := s.sign(user, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.sign(user, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, &user.ID, "LOGIN_SUCCESS", map[string]interface{}{"login": in.Login}, in.ClientIP, auditlog.StatusSuccess)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, user, nil
}

func (s *service) sign(user *User, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":     user.ID,
		"role":        user.Role,
		"designation": string(user.Designation),
		"exp":         time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseUserID(tokenStr, secret string) (uint, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// ParseAccessToken validates an access token and returns its user id.
func (s *service) ParseAccessToken(token string) (uint, error) {
	return parseUserID(token, s.accessSecret)
}

// =============================
// Refresh
// =============================

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := parseUserID(refreshToken, s.refreshSecret)
	if err != nil {
		return "", errors.New("invalid refresh token")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.sign(&user, s.accessSecret, s.accessTTL)
}

func (s *service) GetUserByID(ctx context.Context, userID uint) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

// =============================
// Profile
// =============================

type UpdateProfileInput struct {
	Username        string
	Email           string
	CurrentPassword string
	NewPassword     string
	ClientIP        string
}

// UpdateProfile changes username, email or password. A password change needs
// the current password.
func (s *service) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		username = user.Username
	}
	if email == "" {
		email = user.Email
	}
	if username != user.Username || email != user.Email {
		exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email, user.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrAccountExists
		}
	}
	user.Username = username
	user.Email = email

	if in.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, &user); err != nil {
		return nil, err
	}
	s.record(ctx, &user.ID, "PROFILE_UPDATED", map[string]interface{}{
		"password_changed": in.NewPassword != "",
	}, in.ClientIP, auditlog.StatusSuccess)
	return &user, nil
}

// EmployeeIDAvailable reports whether no account uses employeeID yet.
func (s *service) EmployeeIDAvailable(ctx context.Context, employeeID string) (bool, error) {
	taken, err := s.repo.ExistsByEmployeeID(ctx, employee.NormalizeID(employeeID))
	return !taken, err
}

func (s *service) record(ctx context.Context, userID *uint, action string, details map[string]interface{}, ip, status string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAction(ctx, userID, nil, action, details, ip, status); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
