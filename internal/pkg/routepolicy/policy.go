// Package routepolicy holds the ordered method/path authorization table.
package routepolicy

import (
	"strings"

	"classroom-api/internal/core/domain"
)

// Kind is the kind of access a rule requires
type Kind int

const (
	KindPublic Kind = iota
	KindAuthenticated
	KindRole
)

// Requirement describes what a matching request must satisfy
type Requirement struct {
	Kind  Kind
	Roles []domain.Role
}

// Public permits every request
func Public() Requirement { return Requirement{Kind: KindPublic} }

// AuthenticatedAny permits any authenticated principal
func AuthenticatedAny() Requirement { return Requirement{Kind: KindAuthenticated} }

// RequireRole permits authenticated principals whose role is in roles
func RequireRole(roles ...domain.Role) Requirement {
	return Requirement{Kind: KindRole, Roles: roles}
}

func (r Requirement) String() string {
	switch r.Kind {
	case KindPublic:
		return "public"
	case KindAuthenticated:
		return "authenticated"
	}
	names := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		names[i] = string(role)
	}
	return "role(" + strings.Join(names, ",") + ")"
}

// AnyMethod matches every HTTP method
const AnyMethod = "*"

// Rule binds a method and an Ant-style path pattern to a requirement.
// "*" matches one path segment, "**" matches zero or more. Segments compare case-insensitively.
type Rule struct {
	Method      string
	Pattern     string
	Requirement Requirement

	segments []string
}

// Decision is the outcome of evaluating a request
type Decision int

const (
	Allow Decision = iota
	Unauthorized
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	}
	return "forbidden"
}

// Policy is an ordered rule list; the first matching rule decides
type Policy struct {
	rules    []Rule
	fallback Requirement
}

// New builds a policy from rules in evaluation order. Unmatched requests need authentication.
func New(rules ...Rule) *Policy {
	p := &Policy{fallback: AuthenticatedAny()}
	for _, r := range rules {
		r.Method = strings.ToUpper(r.Method)
		if r.Method == "" {
			r.Method = AnyMethod
		}
		r.segments = split(r.Pattern)
		p.rules = append(p.rules, r)
	}
	return p
}

// Rules returns the rules in evaluation order
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Match returns the requirement for a request and whether an explicit rule matched
func (p *Policy) Match(method, path string) (Requirement, bool) {
	method = strings.ToUpper(method)
	segs := split(path)
	for _, r := range p.rules {
		if r.Method != AnyMethod && r.Method != method {
			continue
		}
		if matchSegments(r.segments, segs) {
			return r.Requirement, true
		}
	}
	return p.fallback, false
}

// Decide evaluates a request against the policy. A nil or pending principal is anonymous.
func (p *Policy) Decide(method, path string, principal *domain.Principal) Decision {
	req, _ := p.Match(method, path)
	return req.Evaluate(principal)
}

// Evaluate applies the requirement to principal
func (r Requirement) Evaluate(principal *domain.Principal) Decision {
	switch r.Kind {
	case KindPublic:
		return Allow
	case KindAuthenticated:
		if principal.Authenticated() {
			return Allow
		}
		return Unauthorized
	default:
		if !principal.Authenticated() {
			return Unauthorized
		}
		if principal.HasAnyRole(r.Roles...) {
			return Allow
		}
		return Forbidden
	}
}

// split lowercases path so the policy matches at least every path the router accepts
func split(path string) []string {
	path = strings.Trim(strings.ToLower(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if matchSegments(rest, path[i:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if head != "*" && head != path[0] {
			return false
		}
		pattern = pattern[1:]
		path = path[1:]
	}
	return len(path) == 0
}
