// Package sqlutil provides SQL text helpers for QTrace.
package sqlutil

import (
	"strings"
)

// UnquoteIdentifier strips one leading and one trailing backtick from name.
// Unbalanced quotes are removed independently, so "`users" and "users`"
// both yield "users".
// Example: "`my_table`" -> "my_table"
func UnquoteIdentifier(name string) string {
	name = strings.TrimPrefix(name, "`")
	return strings.TrimSuffix(name, "`")
}

// SplitStatements splits a script into individual statements on semicolons
// that appear outside of quoted strings and identifiers. Empty statements are
// dropped and surrounding whitespace is trimmed.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      rune
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return statements
}
