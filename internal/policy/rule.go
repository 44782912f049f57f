package policy

import (
	"fmt"
	"slices"

	"github.com/horanet/hauth/internal/shared"
)

// Kind enumerates the closed set of access rule variants.
type Kind int

const (
	// KindInvalid is the zero value and never authorizes anything.
	KindInvalid Kind = iota
	// KindDeny forbids the path unconditionally.
	KindDeny
	// KindAllow requires authentication only.
	KindAllow
	// KindSkip bypasses authentication and authorization entirely.
	KindSkip
	// KindRoleSet permits only principals whose role is in the set.
	KindRoleSet
)

// Rule is the access-control verdict class attached to a URL pattern.
// Roles is populated only for KindRoleSet.
type Rule struct {
	Kind  Kind
	Roles []string
}

var (
	// Skip bypasses the engine for matching paths.
	Skip = Rule{Kind: KindSkip}
	// Allow admits any authenticated principal.
	Allow = Rule{Kind: KindAllow}
	// Deny rejects every request to matching paths.
	Deny = Rule{Kind: KindDeny}
)

// RoleSet builds a rule admitting only the named roles.
func RoleSet(roles ...string) Rule {
	return Rule{Kind: KindRoleSet, Roles: roles}
}

// ParseRule converts a loosely typed configuration value into a Rule.
// Accepted shapes are the strings "skip", "allow" and "deny", or a list
// of role names. Anything else is a configuration error.
func ParseRule(value any) (Rule, error) {
	switch v := value.(type) {
	case Rule:
		if v.Kind == KindInvalid {
			return Rule{}, shared.ErrInvalidRule
		}
		return v, nil
	case string:
		switch v {
		case "skip":
			return Skip, nil
		case "allow":
			return Allow, nil
		case "deny":
			return Deny, nil
		}
		return Rule{}, fmt.Errorf("%w: %q", shared.ErrInvalidRule, v)
	case []string:
		return RoleSet(v...), nil
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			role, ok := item.(string)
			if !ok {
				return Rule{}, fmt.Errorf("%w: role name %v", shared.ErrInvalidRule, item)
			}
			roles = append(roles, role)
		}
		return RoleSet(roles...), nil
	}
	return Rule{}, fmt.Errorf("%w: %v", shared.ErrInvalidRule, value)
}

// Authorize reports whether a principal holding role may access a path
// governed by rule. Unknown rule kinds fail closed.
func Authorize(rule Rule, role string) bool {
	switch rule.Kind {
	case KindAllow, KindSkip:
		return true
	case KindRoleSet:
		return slices.Contains(rule.Roles, role)
	default:
		return false
	}
}
