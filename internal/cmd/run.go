package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harrison/autopilot/internal/audit"
	"github.com/harrison/autopilot/internal/checkpoint"
	"github.com/harrison/autopilot/internal/clock"
	"github.com/harrison/autopilot/internal/config"
	"github.com/harrison/autopilot/internal/engine"
	"github.com/harrison/autopilot/internal/guardrails"
	"github.com/harrison/autopilot/internal/logger"
	"github.com/harrison/autopilot/internal/models"
	"github.com/harrison/autopilot/internal/parser"
	"github.com/spf13/cobra"
)

// runOptions holds the flag values for the run command.
type runOptions struct {
	configPath  string
	logLevel    string
	userID      string
	workspaceID string
	maxDays     int
	autoApprove bool
	reviewer    string
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a plan file day by day",
		Long: `Execute a plan file one simulated day at a time.

The plan file is Markdown with a YAML frontmatter header (goal, duration,
policy overrides) and optional "## Day N" sections seeding tasks. Days
without seeds get a synthesized task. Every task passes through the
guardrails before it runs; a denied task pauses the plan until its
escalation is approved.

Configuration is loaded from .autopilot/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Run a plan to completion, prompting on escalations
  autopilot run plan.md

  # Unattended run approving every escalation as "ci"
  autopilot run plan.md --auto-approve --reviewer ci

  # Execute at most two days this invocation
  autopilot run plan.md --days 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultConfigPath, "path to the config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log verbosity (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.userID, "user", "cli", "user id recorded on the plan")
	cmd.Flags().StringVar(&opts.workspaceID, "workspace", "default", "workspace id recorded on the plan")
	cmd.Flags().IntVar(&opts.maxDays, "days", 0, "maximum days to execute this invocation (0 = until done)")
	cmd.Flags().BoolVar(&opts.autoApprove, "auto-approve", false, "approve every escalation without prompting")
	cmd.Flags().StringVar(&opts.reviewer, "reviewer", "cli", "reviewer id recorded on approvals")

	return cmd
}

func runPlan(path string, opts *runOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	planFile, err := parser.NewMarkdownParser().Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	clk := clock.SystemClock{}
	ids := clock.UUIDGenerator{}
	guards := guardrails.New(clk, ids)

	if cfg.AuditDBPath != "" {
		store, err := audit.NewStore(cfg.AuditDBPath)
		if err != nil {
			return fmt.Errorf("failed to open audit trail: %w", err)
		}
		defer store.Close()
		guards.SetRecorder(store)
	}

	conLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	eng := engine.New(guards, clk, ids, engine.WithLogger(conLog))

	policy := planFile.Policy
	if policy == nil {
		p := cfg.Policy.ToPolicy()
		policy = &p
	}
	plan, err := eng.CreatePlan(engine.CreatePlanRequest{
		UserID:       opts.userID,
		WorkspaceID:  opts.workspaceID,
		Goal:         planFile.Goal,
		DurationDays: planFile.DurationDays,
		SeedTasks:    planFile.SeedTasks,
		Policy:       policy,
	})
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	fmt.Fprintf(out, "Plan %s: %q over %d day(s)\n\n", plan.ID, plan.Goal, plan.DurationDays)

	var ckpt *checkpoint.Store
	if cfg.CheckpointPath != "" {
		ckpt = checkpoint.NewStore(cfg.CheckpointPath)
	}

	prompter := bufio.NewScanner(in)
	days := 0
	for {
		result, err := eng.ExecuteDay(engine.ExecuteDayRequest{PlanID: plan.ID})
		if err != nil {
			return fmt.Errorf("day execution failed: %w", err)
		}
		plan = result.Plan
		days++

		if saveErr := saveCheckpoint(ckpt, clk, eng, guards, plan.ID); saveErr != nil {
			fmt.Fprintf(out, "warning: checkpoint not saved: %v\n", saveErr)
		}

		if plan.IsTerminal() || plan.Status == models.PlanFailed {
			break
		}
		if opts.maxDays > 0 && days >= opts.maxDays {
			fmt.Fprintf(out, "\nStopping after %d day(s); plan %s is %s.\n", days, plan.ID, plan.Status)
			return nil
		}

		if plan.Status == models.PlanPaused {
			approved, err := resolvePending(guards, plan.ID, opts, prompter, out)
			if err != nil {
				return err
			}
			if !approved {
				printSummary(out, plan)
				fmt.Fprintf(out, "\nPlan remains paused. Re-run with --auto-approve to continue.\n")
				return nil
			}
			plan, err = eng.ResumePlan(plan.ID)
			if err != nil {
				return fmt.Errorf("failed to resume plan: %w", err)
			}
		}
	}

	printSummary(out, plan)
	return nil
}

// resolvePending walks the plan's pending escalations, approving each one
// automatically or after a y/N prompt. Returns true only when every
// escalation was approved.
func resolvePending(guards *guardrails.Guardrails, planID string, opts *runOptions, prompter *bufio.Scanner, out io.Writer) (bool, error) {
	pending := guards.ListEscalations(planID, models.EscalationPending)
	if len(pending) == 0 {
		return false, nil
	}
	allApproved := true
	for _, esc := range pending {
		approve := opts.autoApprove
		if !approve {
			fmt.Fprintf(out, "Escalation %s [%s]: %s\nApprove? [y/N]: ", esc.ID, esc.Type, esc.Reason)
			if prompter.Scan() {
				answer := strings.ToLower(strings.TrimSpace(prompter.Text()))
				approve = answer == "y" || answer == "yes"
			}
		}
		if _, err := guards.ResolveEscalation(esc.ID, approve, opts.reviewer); err != nil {
			return false, fmt.Errorf("failed to resolve escalation %s: %w", esc.ID, err)
		}
		if approve {
			fmt.Fprintf(out, "Approved %s\n", esc.ID)
		} else {
			fmt.Fprintf(out, "Rejected %s\n", esc.ID)
			allApproved = false
		}
	}
	return allApproved, nil
}

// saveCheckpoint snapshots the plan and its escalation history.
func saveCheckpoint(ckpt *checkpoint.Store, clk clock.Clock, eng *engine.Engine, guards *guardrails.Guardrails, planID string) error {
	if ckpt == nil {
		return nil
	}
	plan, err := eng.GetPlan(planID)
	if err != nil {
		return err
	}
	return ckpt.Save(&checkpoint.Snapshot{
		SavedAt:     clk.Now(),
		Plans:       []*models.Plan{plan},
		Escalations: guards.ListEscalations("", ""),
	})
}

func printSummary(out io.Writer, plan *models.Plan) {
	completed, failed, blocked := 0, 0, 0
	for _, task := range plan.Tasks {
		switch task.Status {
		case models.TaskCompleted:
			completed++
		case models.TaskFailed:
			failed++
		case models.TaskApprovalRequired:
			blocked++
		}
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Plan Summary:\n")
	fmt.Fprintf(out, "  Status: %s\n", plan.Status)
	fmt.Fprintf(out, "  Tasks: %d completed, %d failed, %d awaiting approval (of %d)\n",
		completed, failed, blocked, len(plan.Tasks))
	fmt.Fprintf(out, "  Usage: %d tokens, %d API calls, %d connector actions, %d minutes\n",
		plan.Usage.TokensUsed, plan.Usage.APICalls, plan.Usage.ConnectorActions, plan.Usage.RuntimeMinutes)

	if failed > 0 {
		fmt.Fprintf(out, "\nFailed Tasks:\n")
		for _, task := range plan.Tasks {
			if task.Status == models.TaskFailed {
				fmt.Fprintf(out, "  - Day %d: %s (%s)\n", task.DayIndex+1, task.Title, task.Notes)
			}
		}
	}
}
