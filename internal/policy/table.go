// Package policy implements URL-to-rule resolution and role based
// authorization decisions over an ordered access rule table.
package policy

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/horanet/hauth/internal/shared"
)

// Entry pairs a URL pattern with its access rule. A pattern starting
// with "/" is a literal prefix and matches paths by prefix only; any
// other pattern is a regular expression matching anywhere in the path.
// The two classes never overlap: a prefix pattern whose text occurs
// mid-path does not match.
type Entry struct {
	Pattern string
	Rule    Rule
}

type compiledEntry struct {
	pattern string
	re      *regexp.Regexp // nil for prefix patterns
	rule    Rule
}

// Table evaluates access rules in declaration order. It is immutable
// after construction and safe for concurrent use.
type Table struct {
	entries []compiledEntry
	def     Rule
	logger  *slog.Logger
}

// NewTable compiles the ordered entries. def is the verdict returned
// when no entry matches; callers choosing Allow restore the legacy
// permissive fallback, Deny is the documented default of this module.
// Patterns not rooted at "/" are compiled as regular expressions;
// compilation failures abort construction.
func NewTable(entries []Entry, def Rule, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if def.Kind == KindInvalid {
		def = Deny
	}
	compiled := make([]compiledEntry, 0, len(entries))
	for _, e := range entries {
		if e.Rule.Kind == KindInvalid {
			return nil, fmt.Errorf("%w: pattern %q", shared.ErrInvalidRule, e.Pattern)
		}
		ce := compiledEntry{pattern: e.Pattern, rule: e.Rule}
		if !strings.HasPrefix(e.Pattern, "/") {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", shared.ErrInvalidPattern, e.Pattern, err)
			}
			ce.re = re
		}
		compiled = append(compiled, ce)
	}
	return &Table{entries: compiled, def: def, logger: logger}, nil
}

// Resolve returns the rule of the first entry matching path, in
// declaration order, or the table default when nothing matches. The
// path must exclude the query string. Resolve is a pure function.
func (t *Table) Resolve(path string) Rule {
	for _, e := range t.entries {
		if e.re == nil {
			if strings.HasPrefix(path, e.pattern) {
				return e.rule
			}
			continue
		}
		if e.re.MatchString(path) {
			return e.rule
		}
	}
	return t.def
}

// Authorize resolves the rule for path and decides whether role may
// pass. An invalid rule kind is logged and denied.
func (t *Table) Authorize(role, path string) bool {
	return t.AuthorizeRule(t.Resolve(path), role)
}

// AuthorizeRule decides an already resolved rule, avoiding a second
// resolution when the caller holds one.
func (t *Table) AuthorizeRule(rule Rule, role string) bool {
	if rule.Kind == KindInvalid {
		t.logger.Error("invalid access rule in table", slog.String("role", role))
		return false
	}
	return Authorize(rule, role)
}
