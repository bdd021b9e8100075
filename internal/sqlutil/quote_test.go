package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnquoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Quoted table name",
			input:    "`users`",
			expected: "users",
		},
		{
			name:     "Bare table name",
			input:    "order_items",
			expected: "order_items",
		},
		{
			name:     "Leading backtick only",
			input:    "`users",
			expected: "users",
		},
		{
			name:     "Trailing backtick only",
			input:    "users`",
			expected: "users",
		},
		{
			name:     "Only one pair is stripped",
			input:    "``users``",
			expected: "`users`",
		},
		{
			name:     "Inner backticks kept",
			input:    "`my`table`",
			expected: "my`table",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Lone backtick",
			input:    "`",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnquoteIdentifier(tt.input))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Single statement without terminator",
			input:    "SELECT * FROM users",
			expected: []string{"SELECT * FROM users"},
		},
		{
			name:     "Multiple statements",
			input:    "SELECT 1;\nUPDATE users SET a = 1;\n",
			expected: []string{"SELECT 1", "UPDATE users SET a = 1"},
		},
		{
			name:     "Semicolon inside single quotes",
			input:    "INSERT INTO notes (body) VALUES ('a;b'); SELECT 1",
			expected: []string{"INSERT INTO notes (body) VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:     "Semicolon inside backticks",
			input:    "SELECT * FROM `odd;name`;",
			expected: []string{"SELECT * FROM `odd;name`"},
		},
		{
			name:     "Empty statements dropped",
			input:    " ; ;\n\t;",
			expected: nil,
		},
		{
			name:     "Multi-line statement kept intact",
			input:    "SELECT *\n  FROM orders\n  WHERE id = 1;",
			expected: []string{"SELECT *\n  FROM orders\n  WHERE id = 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitStatements(tt.input))
		})
	}
}
