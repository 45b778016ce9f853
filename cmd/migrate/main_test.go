package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.Execute()
	return stdout.String(), err
}

func TestCreateThenList(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCLI(t, "--path", dir, "create", "add_trial_end")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_add_trial_end.up.sql")
	assert.Contains(t, out, "000001_add_trial_end.down.sql")

	_, err = executeCLI(t, "--path", dir, "create", "add_notes")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "000002_add_notes.up.sql"))
	require.NoError(t, err)

	out, err = executeCLI(t, "--path", dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "000001  add_trial_end\n000002  add_notes\n", out)
}

func TestListEmptyDirectory(t *testing.T) {
	out, err := executeCLI(t, "--path", t.TempDir(), "list")
	require.NoError(t, err)
	assert.Equal(t, "no migrations found\n", out)
}

func TestArgumentValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"steps requires a number", []string{"steps", "abc"}, `invalid step count "abc"`},
		{"steps rejects zero", []string{"steps", "0"}, "step count must not be zero"},
		{"goto rejects negative", []string{"goto", "-1"}, `invalid version "-1"`},
		{"force requires a number", []string{"force", "x"}, `invalid version "x"`},
		{"create requires a name", []string{"create"}, "accepts 1 arg(s), received 0"},
		{"up takes no args", []string{"up", "extra"}, `unknown command "extra"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCLI(t, append([]string{"--path", dir}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveMigrationsPath(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveMigrationsPath(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = resolveMigrationsPath("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
