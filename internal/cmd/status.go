package cmd

import (
	"fmt"
	"io"

	"github.com/harrison/autopilot/internal/checkpoint"
	"github.com/harrison/autopilot/internal/config"
	"github.com/harrison/autopilot/internal/models"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status subcommand
func NewStatusCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last checkpointed plan state",
		Long: `Show the plans and escalations captured in the most recent checkpoint.

The run command writes a checkpoint after every executed day, so status
reflects the state as of the last completed day, not a live view.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(configPath, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the config file")

	return cmd
}

func showStatus(configPath string, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.CheckpointPath == "" {
		return fmt.Errorf("checkpointing is disabled in the config")
	}

	snap, err := checkpoint.NewStore(cfg.CheckpointPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if snap == nil {
		fmt.Fprintf(out, "No checkpoint found at %s. Run a plan first.\n", cfg.CheckpointPath)
		return nil
	}

	fmt.Fprintf(out, "Checkpoint from %s\n\n", snap.SavedAt.Format("2006-01-02 15:04:05"))
	for _, plan := range snap.Plans {
		fmt.Fprintf(out, "Plan %s (%s)\n", plan.ID, plan.Status)
		fmt.Fprintf(out, "  Goal: %s\n", plan.Goal)
		fmt.Fprintf(out, "  Day: %d of %d\n", plan.CurrentDayIndex+1, plan.DurationDays)
		fmt.Fprintf(out, "  Usage: %d tokens, %d API calls, %d connector actions, %d minutes\n",
			plan.Usage.TokensUsed, plan.Usage.APICalls, plan.Usage.ConnectorActions, plan.Usage.RuntimeMinutes)
		if len(plan.Reports) > 0 {
			fmt.Fprintf(out, "  Last report: %s\n", plan.Reports[0].Summary)
		}
	}

	pending := 0
	for _, esc := range snap.Escalations {
		if esc.Status != models.EscalationPending {
			continue
		}
		if pending == 0 {
			fmt.Fprintf(out, "\nPending Escalations:\n")
		}
		pending++
		fmt.Fprintf(out, "  %s [%s] plan %s: %s\n", esc.ID, esc.Type, esc.PlanID, esc.Reason)
	}
	if pending == 0 {
		fmt.Fprintf(out, "\nNo pending escalations.\n")
	}
	return nil
}
