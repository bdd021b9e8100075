// Package pattern holds the set of watch patterns that decide which
// statements are echoed with their call sites.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// InvalidPatternError is returned when a raw watch expression does not compile.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid watch pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Registry stores watch patterns and compiles them into a single
// case-insensitive alternation on first use.
//
// The compiled matcher is cached until the pattern set changes. All methods
// are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	patterns []string
	matcher  *regexp.Regexp
	dirty    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// WatchLiteral registers s as a plain string. Every character is matched
// literally.
func (r *Registry) WatchLiteral(s string) {
	r.add(regexp.QuoteMeta(s))
}

// WatchPattern registers a raw regular expression. The expression is compiled
// immediately so a malformed pattern fails at registration rather than on the
// first intercepted statement.
func (r *Registry) WatchPattern(expr string) error {
	if _, err := regexp.Compile(expr); err != nil {
		return &InvalidPatternError{Pattern: expr, Err: err}
	}
	r.add(expr)
	return nil
}

// WatchRegexp registers an already compiled expression.
func (r *Registry) WatchRegexp(re *regexp.Regexp) {
	r.add(re.String())
}

func (r *Registry) add(expr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patterns = append(r.patterns, expr)
	r.dirty = true
}

// Matches reports whether text matches any registered pattern, ignoring case.
// It always returns false when nothing has been registered.
func (r *Registry) Matches(text string) bool {
	matcher := r.compiled()
	if matcher == nil {
		return false
	}
	return matcher.MatchString(text)
}

// compiled returns the cached matcher, rebuilding it if the pattern set
// changed since the last build. It returns nil for an empty registry.
func (r *Registry) compiled() *regexp.Regexp {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.patterns) == 0 {
		return nil
	}
	if r.matcher != nil && !r.dirty {
		return r.matcher
	}

	// Every entry compiled on its own at registration, so the alternation
	// of grouped entries always compiles too.
	r.matcher = regexp.MustCompile("(?i)" + alternation(r.patterns))
	r.dirty = false
	return r.matcher
}

// alternation joins the distinct patterns, each in a non-capturing group so
// flags and anchors in one entry cannot leak into its neighbours.
func alternation(patterns []string) string {
	seen := make(map[string]bool, len(patterns))
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, "(?:"+p+")")
	}
	return strings.Join(parts, "|")
}

// Patterns returns the registered expressions in registration order,
// duplicates included.
func (r *Registry) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Len returns the number of registered expressions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patterns)
}

// Reset drops every pattern and the cached matcher.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patterns = nil
	r.matcher = nil
	r.dirty = false
}
