package cmd

import (
	"fmt"
	"io"

	"github.com/harrison/autopilot/internal/audit"
	"github.com/harrison/autopilot/internal/config"
	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit subcommand
func NewAuditCommand() *cobra.Command {
	var (
		configPath string
		planID     string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the guardrail decision trail",
		Long: `Show every guardrail decision and escalation resolution recorded in
the audit database, oldest first. Use --plan to narrow to one plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showAudit(configPath, planID, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the config file")
	cmd.Flags().StringVar(&planID, "plan", "", "only show records for this plan id")

	return cmd
}

func showAudit(configPath, planID string, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.AuditDBPath == "" {
		return fmt.Errorf("audit trail is disabled in the config")
	}

	store, err := audit.NewStore(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer store.Close()

	decisions, err := store.ListDecisions(planID)
	if err != nil {
		return fmt.Errorf("failed to read decisions: %w", err)
	}
	resolutions, err := store.ListResolutions(planID)
	if err != nil {
		return fmt.Errorf("failed to read resolutions: %w", err)
	}

	if len(decisions) == 0 && len(resolutions) == 0 {
		fmt.Fprintf(out, "No audit records found.\n")
		return nil
	}

	if len(decisions) > 0 {
		fmt.Fprintf(out, "Decisions:\n")
		for _, d := range decisions {
			verdict := "DENY "
			if d.Allowed {
				verdict = "ALLOW"
			}
			fmt.Fprintf(out, "  %s %s plan %s action %s", d.DecidedAt.Format("2006-01-02 15:04:05"), verdict, d.PlanID, d.ActionID)
			if d.Reason != "" {
				fmt.Fprintf(out, " (%s: %s)", d.EscalationType, d.Reason)
			}
			fmt.Fprintf(out, "\n")
		}
	}

	if len(resolutions) > 0 {
		fmt.Fprintf(out, "\nResolutions:\n")
		for _, r := range resolutions {
			fmt.Fprintf(out, "  %s %s escalation %s [%s] by %s\n",
				r.ResolvedAt.Format("2006-01-02 15:04:05"), r.Status, r.EscalationID, r.Type, r.ResolvedBy)
		}
	}
	return nil
}
