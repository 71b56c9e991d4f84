package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-report/source/sourcetest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_ProcessReportReset(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("PRODREPORT_REPORT_PATH", filepath.Join(dir, "teams.xlsx"))

	db := filepath.Join(dir, "production.db")
	fixture := sourcetest.WriteFixture(t)

	out, err := execute(t, "--db", db, "--log-level", "error", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "16 records from 2 companies loaded")
	assert.FileExists(t, filepath.Join(dir, "teams.xlsx"))

	// The store persists between invocations.
	out, err = execute(t, "--db", db, "--log-level", "error", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "company1")
	assert.Contains(t, out, "41")
	assert.Contains(t, out, "8 rows")

	_, err = execute(t, "--db", db, "--log-level", "error", "reset")
	require.NoError(t, err)

	out, err = execute(t, "--db", db, "--log-level", "error", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "0 rows")
}

func TestCLI_MissingFileFails(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	t.Setenv("HOME", dir)

	_, err := execute(t, "--db", filepath.Join(dir, "p.db"), "--log-level", "error", filepath.Join(dir, "nope.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

// chdirForTest changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
