package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for autopilot
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Guardrailed multi-day plan runner",
		Long: `Autopilot executes long-running plans one simulated day at a time,
with every task checked against resource budgets, an irreversible-action
approval workflow, and a global kill switch.

It parses plan files (Markdown with YAML frontmatter), seeds or
synthesizes one task per day, and records every guardrail decision to a
local audit trail.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewAuditCommand())

	return cmd
}
