package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(zap.NewNop())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// The bootstrap URI deliberately points at an unresolvable host: these
// tests pass only when the offending option is rejected before any
// connection attempt.
const unreachable = "root:secret@unreachable.invalid:3306"

func TestBootstrapRequiredOptions(t *testing.T) {
	err := execute(t, "--directory", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, "Option -B/--bootstrap is required", err.Error())

	err = execute(t, "--bootstrap", unreachable)
	require.Error(t, err)
	assert.Equal(t, "Option -d/--directory is required", err.Error())

	err = execute(t, "--directory", t.TempDir(), "--password-retries", "3")
	require.Error(t, err)
	assert.Equal(t, "Option --password-retries can only be used together with -B/--bootstrap", err.Error())
}

func TestBootstrapEmptyOptionValues(t *testing.T) {
	for _, flag := range []string{"bootstrap", "directory", "user", "ssl-ca", "ssl-cert"} {
		t.Run(flag, func(t *testing.T) {
			err := execute(t, "--bootstrap", unreachable, "--directory", t.TempDir(), "--"+flag, "")
			require.Error(t, err)
			assert.Equal(t, "Value for option '--"+flag+"' can't be empty.", err.Error())
		})
	}
}

func TestBootstrapRejectsNameBeforeConnecting(t *testing.T) {
	err := execute(t, "--bootstrap", unreachable, "--directory", t.TempDir(),
		"--name", "system")
	require.Error(t, err)
	assert.Equal(t, "Router name 'system' is reserved", err.Error())

	err = execute(t, "--bootstrap", unreachable, "--directory", t.TempDir(),
		"--name", strings.Repeat("long", 64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too long (max 255).")
}

func TestBootstrapRejectsPasswordRetriesBeforeConnecting(t *testing.T) {
	for _, value := range []string{"0", "10001", "bozo"} {
		err := execute(t, "--bootstrap", unreachable, "--directory", t.TempDir(),
			"--password-retries", value)
		require.Error(t, err)
		assert.Equal(t,
			"Invalid password-retries value '"+value+"'; please pick a value from 1 to 10000",
			err.Error())
	}
}

func TestBootstrapRejectsInvalidSSLMode(t *testing.T) {
	for _, value := range []string{"", "bogus"} {
		err := execute(t, "--bootstrap", unreachable, "--directory", t.TempDir(),
			"--ssl-mode", value)
		require.Error(t, err)
		assert.Equal(t, "Invalid value for --ssl-mode option", err.Error())
	}
}
