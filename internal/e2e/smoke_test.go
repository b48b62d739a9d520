package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeGraderFixture(home))

	stdout, stderr, err := runGrader(t, binaryPath, home, "tools", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "c-intro")

	stdout, stderr, err = runGrader(t, binaryPath, home, "reference", "mint", "--serial", "1")
	require.NoError(t, err, "stderr: %s", stderr)
	token := strings.TrimSpace(stdout)

	stdout, stderr, err = runGrader(t, binaryPath, home, "reference", "verify", token, "--tool-key", "key-1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "user: alice")

	stdout, stderr, err = runGrader(t, binaryPath, home, "attempts", "list", "--tool-key", "key-1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "attempts: 1")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "grader-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/grader")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build grader binary: %s", string(output))
	return binaryPath
}

func runGrader(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "GRADER_LOG_LEVEL=error")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeGraderFixture(home string) error {
	configDir := filepath.Join(home, ".grader")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	tools := `version = 1

[[tools]]
name = "c-intro"
corrector = "/bin/true"
enabled = true

[[keys]]
id = "key-1"
tool = "c-intro"
consumer_key = "consumer-1"
`

	attempts := `version = 1

[[attempts]]
serial = 1
created_at = "2026-03-09T14:05:07Z"
file_name = "main.c"
file_saved = true
score = 80

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
