package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("Root command should not be nil")
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("--help should not error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "autopilot") {
		t.Errorf("Help text should contain 'autopilot', got: %s", output)
	}
	if !strings.Contains(output, "guardrail") && !strings.Contains(output, "kill switch") {
		t.Errorf("Help text should mention guardrails, got: %s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "autopilot" {
		t.Errorf("Expected Use to be 'autopilot', got '%s'", cmd.Use)
	}

	want := map[string]bool{"run": false, "validate": false, "status": false, "audit": false}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}
