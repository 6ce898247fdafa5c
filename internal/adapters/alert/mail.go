package alert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Runner executes name with args and feeds stdin to it.
type Runner func(ctx context.Context, stdin string, name string, args ...string) error

// Mailer hands alerts to the local mail(1) command.
type Mailer struct {
	to       string
	hostname string
	command  string
	run      Runner
}

func NewMailer(to string) *Mailer {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "sensorflow"
	}
	return &Mailer{to: to, hostname: host, command: "mail", run: runCommand}
}

// Alert sends body with a subject of the form "CRITICAL from <host>".
func (m *Mailer) Alert(ctx context.Context, subject, body string) error {
	args := []string{"-s", fmt.Sprintf("%s from %s", subject, m.hostname), "-r", m.hostname, m.to}
	if err := m.run(ctx, body, m.command, args...); err != nil {
		return fmt.Errorf("mail %s: %w", m.to, err)
	}
	return nil
}

func runCommand(ctx context.Context, stdin string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

var _ ports.Alerter = (*Mailer)(nil)
