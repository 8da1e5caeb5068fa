package visit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SessionKey is the gin context key holding the caller's Session.
const SessionKey = "session"

// SessionFrom returns the Session the auth middleware stored on c.
func SessionFrom(c *gin.Context) (Session, bool) {
	val, ok := c.Get(SessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := val.(Session)
	return sess, ok
}

// StatusCode maps the error taxonomy onto HTTP.
func StatusCode(err error) int {
	var (
		valErr   *ValidationError
		authErr  *AuthorizationError
		nfErr    *NotFoundError
		transErr *TransientError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.Is(err, ErrInFlight):
		return http.StatusConflict
	case errors.As(err, &transErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError aborts c with the status and body for err.
func WriteError(c *gin.Context, err error) {
	code := StatusCode(err)
	body := gin.H{"error": err.Error()}

	var valErr *ValidationError
	var authErr *AuthorizationError
	switch {
	case errors.As(err, &valErr):
		body["field"] = valErr.Field
		body["error"] = valErr.Error()
	case errors.As(err, &authErr):
		body["guard"] = authErr.Guard
		body["reason"] = authErr.Reason
		if authErr.Message != "" {
			body["message"] = authErr.Message
		}
	}
	if code == http.StatusInternalServerError {
		body["error"] = "internal server error"
	}
	c.AbortWithStatusJSON(code, body)
}

// RegisterValidators adds the "designation" binding tag.
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("designation", func(fl validator.FieldLevel) bool {
		_, ok := ParseDesignation(fl.Field().String())
		return ok
	})
}
