package domain

import "strings"

// Role represents user role in the system
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleAdviser Role = "ADVISER"
	RoleStudent Role = "STUDENT"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleAdviser, RoleStudent:
		return true
	}
	return false
}

// Authority returns the granted authority name, e.g. ROLE_ADMIN
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// ParseRole normalizes and validates a role name
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Status represents the account status
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// ParseStatus normalizes and validates a status name
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal is the authenticated identity attached to a request
type Principal struct {
	Subject     string
	Email       string
	Role        Role
	Authorities []string
	// Pending is set for OTP-pending tokens; they identify a user but do not authenticate one.
	Pending    bool
	AuthMethod string
}

// NewPrincipal builds a principal with the authority list derived from role
func NewPrincipal(subject, email string, role Role) *Principal {
	return &Principal{
		Subject:     subject,
		Email:       email,
		Role:        role,
		Authorities: []string{role.Authority()},
	}
}

// Authenticated reports whether p can satisfy an authentication requirement
func (p *Principal) Authenticated() bool {
	return p != nil && p.Subject != "" && !p.Pending
}

// HasAnyRole reports whether the principal's role is in roles
func (p *Principal) HasAnyRole(roles ...Role) bool {
	if !p.Authenticated() {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Auth event actions
const (
	ActionLogin          = "LOGIN"
	ActionOTPRequest     = "OTP_REQUEST"
	ActionOTPVerify      = "OTP_VERIFY"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionStatusChange   = "STATUS_CHANGE"
	ActionRoleChange     = "ROLE_CHANGE"
	ActionUserCreate     = "USER_CREATE"
)

// Auth event outcomes
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)
