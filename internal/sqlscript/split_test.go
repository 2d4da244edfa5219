package sqlscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected []string
	}{
		{
			name:     "empty",
			script:   "",
			expected: nil,
		},
		{
			name:     "whitespace and semicolons only",
			script:   " ;\n ; \t;",
			expected: nil,
		},
		{
			name:     "single statement without terminator",
			script:   "CREATE SCHEMA IF NOT EXISTS staging",
			expected: []string{"CREATE SCHEMA IF NOT EXISTS staging"},
		},
		{
			name:   "multiple statements",
			script: "CREATE SCHEMA IF NOT EXISTS staging;\nCREATE TABLE IF NOT EXISTS staging.t (id INT);\n",
			expected: []string{
				"CREATE SCHEMA IF NOT EXISTS staging",
				"CREATE TABLE IF NOT EXISTS staging.t (id INT)",
			},
		},
		{
			name:     "semicolon inside string literal",
			script:   "COMMENT ON TABLE t IS 'a;b';SELECT 1;",
			expected: []string{"COMMENT ON TABLE t IS 'a;b'", "SELECT 1"},
		},
		{
			name:     "escaped quote inside literal",
			script:   "SELECT 'it''s; fine';",
			expected: []string{"SELECT 'it''s; fine'"},
		},
		{
			name:     "semicolon inside quoted identifier",
			script:   `CREATE TABLE "odd;name" (id INT);`,
			expected: []string{`CREATE TABLE "odd;name" (id INT)`},
		},
		{
			name:     "line comments removed",
			script:   "-- header; with semicolon\nSELECT 1; -- trailing\n-- only a comment;",
			expected: []string{"SELECT 1"},
		},
		{
			name:     "block comments removed",
			script:   "/* one; */ SELECT /* two */ 1; /* outer /* inner; */ still; */",
			expected: []string{"SELECT   1"},
		},
		{
			name:     "dollar quoted body",
			script:   "CREATE FUNCTION f() RETURNS INT AS $$ SELECT 1; $$ LANGUAGE sql;SELECT 2;",
			expected: []string{"CREATE FUNCTION f() RETURNS INT AS $$ SELECT 1; $$ LANGUAGE sql", "SELECT 2"},
		},
		{
			name:     "tagged dollar quote",
			script:   "CREATE PROCEDURE p() AS $body$ BEGIN; END; $body$ LANGUAGE plpgsql;",
			expected: []string{"CREATE PROCEDURE p() AS $body$ BEGIN; END; $body$ LANGUAGE plpgsql"},
		},
		{
			name:     "positional parameter is not a dollar quote",
			script:   "PREPARE q AS SELECT $1;SELECT 2;",
			expected: []string{"PREPARE q AS SELECT $1", "SELECT 2"},
		},
		{
			name:   "backslash escaped quote inside literal",
			script: "INSERT INTO t VALUES ('O\\'Brien; Ltd');\nCREATE TABLE b (y INT);",
			expected: []string{
				"INSERT INTO t VALUES ('O\\'Brien; Ltd')",
				"CREATE TABLE b (y INT)",
			},
		},
		{
			name:     "escaped backslash before closing quote",
			script:   "SELECT 'C:\\\\';SELECT 2;",
			expected: []string{"SELECT 'C:\\\\'", "SELECT 2"},
		},
		{
			name:     "E string with escapes",
			script:   "SELECT E'tab\\there\\'s; one';SELECT 2;",
			expected: []string{"SELECT E'tab\\there\\'s; one'", "SELECT 2"},
		},
		{
			name:     "backslash in quoted identifier is literal",
			script:   `CREATE TABLE "a\" (id INT);SELECT 2;`,
			expected: []string{`CREATE TABLE "a\" (id INT)`, "SELECT 2"},
		},
		{
			name:   "dollar sign inside identifiers",
			script: "CREATE TABLE t$a$ (x INT);\nCREATE TABLE b (y INT);\nCREATE TABLE c$a$ (z INT);",
			expected: []string{
				"CREATE TABLE t$a$ (x INT)",
				"CREATE TABLE b (y INT)",
				"CREATE TABLE c$a$ (z INT)",
			},
		},
		{
			name:     "dollar quote after parenthesis",
			script:   "DO ($x$ a; b $x$);SELECT 2;",
			expected: []string{"DO ($x$ a; b $x$)", "SELECT 2"},
		},
		{
			name:     "psql meta commands skipped",
			script:   "\\set ON_ERROR_STOP on\n\\i s3://bucket/redshift-sql/redshift-tables.sql\nSELECT 1;",
			expected: []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.script))
		})
	}
}
