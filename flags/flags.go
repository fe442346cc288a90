// Package flags provides the two-layer feature-flag store consumed by the
// template requires-gates and the background tasks. Flags live in a project
// scope and a global scope; resolution is project-first.
package flags

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/c360studio/guidance/fault"
)

// Value is a flag value: bool, string, []string, or map[string]string.
type Value = any

// namePattern is the set of legal flag names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Scope identifies which store a mutation targets.
type Scope int

const (
	// ScopeProject is the project-level store (wins on resolution).
	ScopeProject Scope = iota
	// ScopeGlobal is the global store.
	ScopeGlobal
)

// String returns the scope name.
func (s Scope) String() string {
	if s == ScopeProject {
		return "project"
	}
	return "global"
}

// Validator is a per-flag value check. projectScope reports whether the value
// is being set in the project store, so a flag can restrict itself to one scope.
type Validator func(value Value, projectScope bool) error

var (
	validatorsMu sync.RWMutex
	validators   = map[string]Validator{}
)

// RegisterValidator installs a custom validator for the named flag.
// Later registrations replace earlier ones.
func RegisterValidator(name string, fn Validator) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	validators[NormalizeName(name)] = fn
}

func lookupValidator(name string) Validator {
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()
	return validators[name]
}

// NormalizeName returns the NFC-normalized form of a flag name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateName checks a flag name against the name rule.
func ValidateName(name string) error {
	if name == "" {
		return fault.Validation("flag name is empty", fault.FieldError{Field: "name", Message: "must be non-empty"})
	}
	if !namePattern.MatchString(name) {
		return fault.Validation(
			fmt.Sprintf("invalid flag name %q", name),
			fault.FieldError{Field: "name", Message: "must match [A-Za-z0-9_-]+"},
		)
	}
	return nil
}

// ValidateValue checks a flag value against the value-type rule.
func ValidateValue(v Value) error {
	switch tv := v.(type) {
	case bool, string:
		return nil
	case []string:
		return nil
	case map[string]string:
		return nil
	case []any:
		for i, e := range tv {
			if _, ok := e.(string); !ok {
				return fault.Validation(
					"invalid flag value",
					fault.FieldError{Field: fmt.Sprintf("value[%d]", i), Message: "sequence elements must be strings"},
				)
			}
		}
		return nil
	case map[string]any:
		for k, e := range tv {
			if _, ok := e.(string); !ok {
				return fault.Validation(
					"invalid flag value",
					fault.FieldError{Field: "value." + k, Message: "mapping values must be strings"},
				)
			}
		}
		return nil
	default:
		return fault.Validation(
			"invalid flag value",
			fault.FieldError{Field: "value", Message: fmt.Sprintf("unsupported type %T", v)},
		)
	}
}

// Truthy reports whether a flag value is truthy: true booleans, non-empty
// strings (excluding "false"), and non-empty sequences/mappings.
func Truthy(v Value) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != "" && tv != "false"
	case []string:
		return len(tv) > 0
	case []any:
		return len(tv) > 0
	case map[string]string:
		return len(tv) > 0
	case map[string]any:
		return len(tv) > 0
	default:
		return true
	}
}

// Store holds the project and global flag maps plus the cached resolved view.
// Both maps are always valid: mutation happens only through Set/Remove, which
// re-validate and invalidate the resolved view before returning.
type Store struct {
	mu       sync.RWMutex
	project  map[string]Value
	global   map[string]Value
	resolved map[string]Value // nil when dirty
	logger   *slog.Logger
}

// NewStore creates an empty flag store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		project: map[string]Value{},
		global:  map[string]Value{},
		logger:  logger,
	}
}

// Set validates and stores a flag in the given scope, invalidating the
// resolved view.
func (s *Store) Set(scope Scope, name string, value Value) error {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateValue(value); err != nil {
		return err
	}
	if fn := lookupValidator(name); fn != nil {
		if err := fn(value, scope == ScopeProject); err != nil {
			return fault.Validation(
				fmt.Sprintf("flag %q rejected", name),
				fault.FieldError{Field: name, Message: err.Error()},
			)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == ScopeProject {
		s.project[name] = value
	} else {
		s.global[name] = value
	}
	s.resolved = nil
	return nil
}

// Remove deletes a flag from the given scope, invalidating the resolved view.
// Removing an absent flag is a no-op.
func (s *Store) Remove(scope Scope, name string) {
	name = NormalizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == ScopeProject {
		delete(s.project, name)
	} else {
		delete(s.global, name)
	}
	s.resolved = nil
}

// Resolve returns the flag value with project-first precedence.
func (s *Store) Resolve(name string) (Value, bool) {
	name = NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.project[name]; ok {
		return v, true
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	return nil, false
}

// Lookup returns the flag value from a single scope, with no fallback to the
// other scope.
func (s *Store) Lookup(scope Scope, name string) (Value, bool) {
	name = NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.project
	if scope == ScopeGlobal {
		m = s.global
	}
	v, ok := m[name]
	return v, ok
}

// Resolved returns a copy of the merged view: every name present in either
// store with its project-first value. The view is cached until the next
// mutation.
func (s *Store) Resolved() map[string]Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved == nil {
		s.resolved = make(map[string]Value, len(s.project)+len(s.global))
		for name, v := range s.global {
			s.resolved[name] = v
		}
		for name, v := range s.project {
			s.resolved[name] = v
		}
	}
	out := make(map[string]Value, len(s.resolved))
	for name, v := range s.resolved {
		out[name] = v
	}
	return out
}

// Names returns every flag name in the given scope.
func (s *Store) Names(scope Scope) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.project
	if scope == ScopeGlobal {
		m = s.global
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// Seed bulk-loads flags into a scope, skipping (and logging) invalid entries.
// Used when hydrating the store from configuration; resolution failures yield
// an empty contribution rather than an error.
func (s *Store) Seed(scope Scope, values map[string]Value) {
	for name, v := range values {
		if err := s.Set(scope, name, v); err != nil {
			s.logger.Warn("Skipping invalid flag from config",
				slog.String("scope", scope.String()),
				slog.String("flag", name),
				slog.String("error", err.Error()))
		}
	}
}
