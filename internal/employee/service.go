package employee

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
)

var employeeIDPattern = regexp.MustCompile(`^[A-Za-z]{1,5}-?[0-9]{1,8}$`)

const cacheTTL = 5 * time.Minute

// Cache is a best-effort string cache. Misses and errors fall through to the
// repository.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Service interface {
	Verify(ctx context.Context, employeeID, requiredPosition string) (Verification, error)
	Validate(ctx context.Context, employeeID string) (Verification, error)
	Lookup(ctx context.Context, employeeID string) (*Employee, error)
	CheckIdentity(ctx context.Context, employeeID string, position visit.Designation) error
}

type service struct {
	repo   Repository
	cache  Cache
	logger *zap.Logger
}

// NewService builds the registry service. cache may be nil.
func NewService(repo Repository, cache Cache, logger *zap.Logger) Service {
	return &service{repo: repo, cache: cache, logger: logger}
}

func malformed(format string, args ...interface{}) Verification {
	return Verification{Reason: ReasonMalformed, Message: fmt.Sprintf(format, args...)}
}

// NormalizeID trims and upper-cases an employee id.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Verify checks that employeeID exists and is registered under requiredPosition.
// A non-nil error means the registry could not be consulted.
func (s *service) Verify(ctx context.Context, employeeID, requiredPosition string) (Verification, error) {
	id := NormalizeID(employeeID)
	if id == "" {
		return malformed("Employee ID is required"), nil
	}
	if !employeeIDPattern.MatchString(id) {
		return malformed("Employee ID %q is not in a recognised format", employeeID), nil
	}
	position, ok := visit.ParseDesignation(requiredPosition)
	if !ok {
		return malformed("Unknown position %q", requiredPosition), nil
	}

	emp, err := s.Lookup(ctx, id)
	if visit.IsNotFound(err) {
		return Verification{Reason: ReasonNotFound, Message: fmt.Sprintf("Employee ID %s is not registered", id)}, nil
	}
	if err != nil {
		return Verification{}, err
	}
	if !emp.Active {
		return Verification{Reason: ReasonInactive, Message: fmt.Sprintf("Employee ID %s is no longer active", id)}, nil
	}
	if emp.Position != position {
		return Verification{
			Reason:  ReasonWrongPosition,
			Message: fmt.Sprintf("Employee ID %s is registered as %s, not %s", id, emp.Position, position),
		}, nil
	}
	return Verification{IsValid: true, Message: "Employee verified"}, nil
}

// Validate checks that employeeID exists and is active, whatever its position.
func (s *service) Validate(ctx context.Context, employeeID string) (Verification, error) {
	id := NormalizeID(employeeID)
	if id == "" {
		return malformed("Employee ID is required"), nil
	}
	if !employeeIDPattern.MatchString(id) {
		return malformed("Employee ID %q is not in a recognised format", employeeID), nil
	}
	emp, err := s.Lookup(ctx, id)
	if visit.IsNotFound(err) {
		return Verification{Reason: ReasonNotFound, Message: "Invalid Employee ID"}, nil
	}
	if err != nil {
		return Verification{}, err
	}
	if !emp.Active {
		return Verification{Reason: ReasonInactive, Message: "Employee ID is no longer active"}, nil
	}
	return Verification{IsValid: true, Message: "Valid employee ID"}, nil
}

// CheckIdentity adapts Verify to the visit identity gate.
func (s *service) CheckIdentity(ctx context.Context, employeeID string, position visit.Designation) error {
	v, err := s.Verify(ctx, employeeID, string(position))
	if err != nil {
		return &visit.TransientError{Op: "verify employee", Err: err}
	}
	if !v.IsValid {
		return &visit.AuthorizationError{Guard: visit.GuardIdentity, Reason: v.Reason, Message: v.Message}
	}
	return nil
}

func cacheKey(id string) string {
	return "employee:" + id
}

// Lookup returns the registry entry for employeeID, consulting the cache first.
func (s *service) Lookup(ctx context.Context, employeeID string) (*Employee, error) {
	id := NormalizeID(employeeID)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(id)); err == nil && raw != "" {
			var emp Employee
			if json.Unmarshal([]byte(raw), &emp) == nil {
				return &emp, nil
			}
		}
	}

	emp, err := s.repo.FindByEmployeeID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(emp); err == nil {
			if err := s.cache.Set(ctx, cacheKey(id), string(payload), cacheTTL); err != nil {
				s.logger.Debug("employee cache write failed", zap.String("employee_id", id), zap.Error(err))
			}
		}
	}
	return emp, nil
}
