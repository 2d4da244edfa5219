package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tables.sql")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestSplitCommand(t *testing.T) {
	p := writeScript(t, `
-- schema
CREATE SCHEMA IF NOT EXISTS sales;
CREATE TABLE IF NOT EXISTS sales.orders (id INT, note VARCHAR(64) DEFAULT 'a;b');
`)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"split", p})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "-- [1]\nCREATE SCHEMA IF NOT EXISTS sales;")
	assert.Contains(t, out.String(), "DEFAULT 'a;b');")
	assert.Contains(t, out.String(), "-- 2 statements")
}

func TestSplitCommand_TooManyStatements(t *testing.T) {
	p := writeScript(t, strings.Repeat("SELECT 1;\n", 41))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"split", p})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch limit of 40")
}

func TestSplitCommand_MissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"split", filepath.Join(t.TempDir(), "nope.sql")})

	assert.Error(t, cmd.Execute())
}

func TestApplyFlags_Request(t *testing.T) {
	defaults := &config.Config{Defaults: config.RequestDefaults{
		WorkgroupName:  "lab2-workgroup",
		DatabaseName:   "lab2db",
		AdminSecretARN: "admin-secret",
		BucketName:     "sql-bucket",
		KeyPrefix:      "redshift-sql",
		SQLFileName:    "redshift-tables.sql",
	}}

	t.Run("defaults fill unset flags", func(t *testing.T) {
		f := applyFlags{event: "update", database: "other"}
		req, local, err := f.request(defaults)
		require.NoError(t, err)

		assert.False(t, local)
		assert.Equal(t, bootstrap.EventUpdate, req.Event)
		assert.Equal(t, "other", req.DatabaseName)
		assert.Equal(t, "lab2-workgroup", req.WorkgroupName)
		assert.Equal(t, "redshift-sql/redshift-tables.sql", req.ObjectKey())
	})

	t.Run("local file", func(t *testing.T) {
		p := writeScript(t, "SELECT 1;")
		f := applyFlags{event: "Create", sqlFile: p}
		req, local, err := f.request(defaults)
		require.NoError(t, err)

		assert.True(t, local)
		assert.Equal(t, filepath.Dir(p), req.BucketName)
		assert.Equal(t, "tables.sql", req.ObjectKey())
		assert.Equal(t, p, filepath.Join(req.BucketName, req.ObjectKey()))
	})

	t.Run("bad event", func(t *testing.T) {
		_, _, err := applyFlags{event: "Rollback"}.request(defaults)
		assert.Error(t, err)
	})
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDuration("soon")
	assert.Error(t, err)

	_, err = parseDuration("-1m")
	assert.Error(t, err)
}
