package alert

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailerBuildsCommand(t *testing.T) {
	var (
		gotName  string
		gotArgs  []string
		gotStdin string
	)
	m := NewMailer("ops@example.org")
	m.hostname = "garden-pi"
	m.run = func(_ context.Context, stdin, name string, args ...string) error {
		gotName, gotArgs, gotStdin = name, args, stdin
		return nil
	}

	require.NoError(t, m.Alert(context.Background(), "CRITICAL", "upload_failed: connection refused"))
	assert.Equal(t, "mail", gotName)
	assert.Equal(t, []string{"-s", "CRITICAL from garden-pi", "-r", "garden-pi", "ops@example.org"}, gotArgs)
	assert.Equal(t, "upload_failed: connection refused", gotStdin)
}

func TestMailerWrapsFailure(t *testing.T) {
	boom := errors.New("exit status 1")
	m := NewMailer("ops@example.org")
	m.run = func(context.Context, string, string, ...string) error { return boom }

	err := m.Alert(context.Background(), "CRITICAL", "x")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ops@example.org")
}

func TestRunCommandFeedsStdin(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	require.NoError(t, runCommand(context.Background(), "hello", "cat"))
	assert.Error(t, runCommand(context.Background(), "", "false"))
}
