package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestToolsListShowsCatalog(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeGraderFixture(home))

	stdout, _, err := executeCLI(t, home, "tools", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NAME")
	assert.Contains(t, stdout, "c-intro")
	assert.Contains(t, stdout, "local")
	assert.Contains(t, stdout, "41")
}

func TestAttemptsListRendersReport(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeGraderFixture(home))

	stdout, _, err := executeCLI(t, home, "attempts", "list", "--tool-key", "key-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Attempts for key-1")
	assert.Contains(t, stdout, "attempts: 2")
	assert.Contains(t, stdout, "4.5/10")
	assert.Contains(t, stdout, "timeout (code 137)")
}

func TestAttemptsListJSONOutput(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeGraderFixture(home))

	stdout, _, err := executeCLI(t, home, "attempts", "list", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"FileName\": \"main.c\"")
	assert.Contains(t, stdout, "\"Reference\"")
}

func TestReferenceMintThenVerify(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeGraderFixture(home))

	stdout, _, err := executeCLI(t, home, "reference", "mint", "--serial", "1")
	require.NoError(t, err)
	token := strings.TrimSpace(stdout)
	require.NotEmpty(t, token)

	stdout, _, err = executeCLI(t, home, "reference", "verify", token, "--tool-key", "key-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "serial: 1")
	assert.Contains(t, stdout, "user: alice")
	assert.Contains(t, stdout, "file: main.c")

	_, _, err = executeCLI(t, home, "reference", "verify", token, "--tool-key", "key-other")
	require.Error(t, err)
}

func TestReferenceMintRequiresSerial(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeGraderFixture(home))

	_, _, err := executeCLI(t, home, "reference", "mint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"serial\" not set")
}

func TestExplicitConfigMustExist(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "--config", filepath.Join(home, "nope.toml"), "tools", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("GRADER_LOG_LEVEL", "error")
	t.Setenv("GRADER_REFERENCE_FAILURE_DELAY", "0s")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeGraderFixture(home string) error {
	configDir := filepath.Join(home, ".grader")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	tools := `version = 1

[[tools]]
name = "c-intro"
corrector = "/srv/grader/bin/correct-c"
runner = "local"
enabled = true
outcome = true
counter = 41

[tools.config]
max_concurrent_users = 2
keep_files = true
keep_output = true
manage_attempts = true

[[keys]]
id = "key-1"
tool = "c-intro"
consumer_key = "consumer-1"
`

	attempts := `version = 1
next_serial = 3

[[attempts]]
serial = 1
created_at = "2026-03-09T14:05:07Z"
file_name = "main.c"
file_saved = true
output_saved = true
score = 45
error_code = 1

[attempts.resource_user]
id = "ru-1"
user_id = "alice"
tool = "c-intro"
tool_key = "key-1"

[[attempts]]
serial = 2
created_at = "2026-03-09T14:06:07Z"
file_name = "main.c"
file_saved = true
output_saved = false
score = 137
error_code = 137

[attempts.resource_user]
id = "ru-1"
user_id = "alice"
tool = "c-intro"
tool_key = "key-1"
`

	if err := os.WriteFile(filepath.Join(configDir, "tools.toml"), []byte(tools), 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, "attempts.toml"), []byte(attempts), 0o600)
}
