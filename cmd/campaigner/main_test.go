package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `
logging:
  level: error
storage:
  driver: none
dispatch:
  delay_between_messages: 0
  delay_between_batches: 0
gateway:
  kind: dryrun
campaigns:
  - name: seminar
    subject: "Seminar"
    recipients:
      - destination: ana@example.com
        name: Ana
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaigner.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	cfg := writeConfig(t)
	env := filepath.Join(filepath.Dir(cfg), ".env")

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  int
		out   string
	}{
		{"no command", nil, "", 2, ""},
		{"unknown command", []string{"launch"}, "", 2, ""},
		{"bad flag", []string{"send", "--nope"}, "", 2, ""},
		{"extra args", []string{"--config", cfg, "stats", "x"}, "", 2, ""},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "stats"}, "", 1, ""},
		{"unknown campaign", []string{"--config", cfg, "--env", env, "send", "--campaign", "other"}, "", 2, ""},
		{"declined", []string{"--config", cfg, "--env", env, "send"}, "no\n", 0, "Aborted."},
		{"confirmed", []string{"--config", cfg, "--env", env, "send"}, "y\n", 0, "[dry-run]"},
		{"validate", []string{"--config", cfg, "--env", env, "validate"}, "", 0, "✓ seminar"},
		{"help", []string{"help"}, "", 0, "commands:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			got := run(context.Background(), tt.args, strings.NewReader(tt.stdin), &stdout, &stderr)
			if got != tt.want {
				t.Fatalf("exit = %d, want %d\nstdout:\n%s\nstderr:\n%s", got, tt.want, stdout.String(), stderr.String())
			}
			if tt.out != "" && !strings.Contains(stdout.String(), tt.out) {
				t.Fatalf("stdout missing %q:\n%s", tt.out, stdout.String())
			}
		})
	}
}
