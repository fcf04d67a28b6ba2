package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docharness/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunFakeToolIfRequested()
	os.Exit(m.Run())
}

// executeCommand runs the root command with args and returns stdout,
// stderr and the command error.
func executeCommand(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeToolEnv describes a temporary workspace wired to the fake build tool.
type fakeToolEnv struct {
	Config string // config file path
	Dir    string // tool working directory
	DB     string // history database path
}

// newFakeToolEnv writes a config file pointing the harness at the fake
// build tool, with history recorded inside the temporary directory.
func newFakeToolEnv(t *testing.T) fakeToolEnv {
	t.Helper()
	return newToolEnv(t, nil)
}

// newToolEnv is newFakeToolEnv with an explicit tool command. A nil command
// selects the fake build tool.
func newToolEnv(t *testing.T, command []string) fakeToolEnv {
	t.Helper()
	dir := t.TempDir()
	fakeCommand, env := testutil.FakeTool()
	if command == nil {
		command = fakeCommand
	}

	e := fakeToolEnv{
		Config: filepath.Join(dir, "docharness.yaml"),
		Dir:    filepath.Join(dir, "work"),
		DB:     filepath.Join(dir, "history.db"),
	}
	require.NoError(t, os.MkdirAll(e.Dir, 0755))

	content := fmt.Sprintf(`tool:
  command: [%q]
  env: [%q]
  dir: %q
timeout: 30s
history:
  path: %q
`, command[0], env[0], e.Dir, e.DB)
	require.NoError(t, os.WriteFile(e.Config, []byte(content), 0644))
	return e
}

// writeSuite writes a suite file into a temporary directory.
func writeSuite(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "list", "validate", "history"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := executeCommand("list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_UnknownCommand(t *testing.T) {
	_, _, err := executeCommand("bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	stdout, _, err := executeCommand("run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E_CONFIG]")
}
