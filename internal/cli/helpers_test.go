package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
	"github.com/viniciuscfreitas/gtdflow/internal/testutil"
)

// cliEnv runs commands against one temporary database with a pinned clock
// and sequential IDs shared across invocations.
type cliEnv struct {
	t     *testing.T
	db    string
	clock *testutil.FakeClock
	ids   *testutil.SequentialIDs
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	// Keep config.Load away from the real ~/.gtdflow/config.yaml
	t.Setenv("HOME", t.TempDir())

	return &cliEnv{
		t:     t,
		db:    filepath.Join(t.TempDir(), "gtdflow.db"),
		clock: testutil.NewFakeClock(time.Time{}),
		ids:   testutil.NewSequentialIDs("id"),
	}
}

// run executes the root command and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()

	opts := &RootOptions{
		AppOptions: []app.Option{
			app.WithClock(e.clock),
			app.WithIDGenerator(e.ids),
			app.WithLocation(time.UTC),
		},
	}
	cmd := newRootCommand(opts)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// jsonResponse is CLIResponse with the payload left raw for typed decoding.
type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// runJSON executes a command with --format json, requires success and
// decodes the payload into v.
func (e *cliEnv) runJSON(v any, args ...string) {
	e.t.Helper()

	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	require.NoError(e.t, err, "output: %s", out)

	var resp jsonResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(e.t, "ok", resp.Status)
	if v != nil {
		require.NoError(e.t, json.Unmarshal(resp.Data, v))
	}
}

// runJSONError executes a command that must fail and returns the error
// payload and exit code.
func (e *cliEnv) runJSONError(args ...string) (*CLIError, int) {
	e.t.Helper()

	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	require.Error(e.t, err)

	var resp jsonResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(e.t, "error", resp.Status)
	require.NotNil(e.t, resp.Error)
	return resp.Error, GetExitCode(err)
}
