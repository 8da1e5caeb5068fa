package visit

import "strings"

// Role is the coarse access level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// NormalizeRole folds any spelling of a role ("Admin", " ADMIN ") onto the
// canonical value. Unknown roles normalize to the empty Role.
func NormalizeRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	}
	return ""
}

// Label is the capitalised form used in API payloads.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	}
	return ""
}

// Session is the authenticated caller. It is built once per request and
// passed by value into every workflow.
type Session struct {
	UserID      uint
	Username    string
	Role        Role
	Designation Designation
	EmployeeID  string
	Token       string
	ClientIP    string
}

// NewSession builds a Session with the role normalized.
func NewSession(userID uint, username, role string, designation Designation, employeeID string) Session {
	return Session{
		UserID:      userID,
		Username:    username,
		Role:        NormalizeRole(role),
		Designation: designation,
		EmployeeID:  employeeID,
	}
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// HasGlobalView reports whether the caller can see visits of every designation.
func (s Session) HasGlobalView() bool {
	return s.IsAdmin() || s.Designation == DesignationCollector
}

// WithToken returns a copy of s carrying the bearer credential.
func (s Session) WithToken(token string) Session {
	s.Token = token
	return s
}
