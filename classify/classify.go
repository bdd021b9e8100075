// Package classify buckets SQL statements by operation and target table.
//
// It is a keyword matcher, not a parser: statements that do not start with a
// recognized shape are simply not classified.
package classify

import (
	"regexp"

	"github.com/dbsmedya/qtrace/internal/sqlutil"
)

// Operation is the statement kind a Key was extracted for.
type Operation string

const (
	OpInsert Operation = "insert"
	OpSelect Operation = "select"
	OpUpdate Operation = "update"
)

// Key identifies a statistics bucket.
type Key struct {
	Operation Operation
	Table     string
}

// String returns the bucket label, e.g. "select users".
func (k Key) String() string {
	return string(k.Operation) + " " + k.Table
}

type rule struct {
	op      Operation
	pattern *regexp.Regexp
}

// Group 1 is the whole table token, which may be a backtick-quoted name.
// Group 2 is only set for bare (unquoted) tokens.
const tableToken = "(`.+?`|([^ ]+))"

// rules are tried in order; the first match wins.
var rules = []rule{
	{OpInsert, regexp.MustCompile("INSERT INTO " + tableToken)},
	{OpSelect, regexp.MustCompile("SELECT .*? FROM " + tableToken)},
	{OpUpdate, regexp.MustCompile("UPDATE " + tableToken)},
}

// Classify extracts the operation and table from a normalized statement.
// The boolean is false when no rule matches.
func Classify(statement string) (Key, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(statement)
		if m == nil {
			continue
		}
		return Key{Operation: r.op, Table: tableName(m)}, true
	}
	return Key{}, false
}

// tableName prefers the bare group over the quoted one, then strips any stray
// backtick left at either end.
func tableName(m []string) string {
	table := m[1]
	if m[2] != "" {
		table = m[2]
	}
	return sqlutil.UnquoteIdentifier(table)
}
