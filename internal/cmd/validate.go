package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/harrison/autopilot/internal/parser"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>...",
		Short: "Validate one or more plan files",
		Long: `Parse and validate plan files without executing them, checking for:
  - A non-empty goal in the frontmatter
  - A duration within the allowed range (1-30 days)
  - Well-formed seed task lines and day headings
  - A coherent policy override, if one is present

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePlanFiles(args, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validatePlanFiles parses each file and prints a per-file verdict.
func validatePlanFiles(paths []string, out io.Writer) error {
	p := parser.NewMarkdownParser()
	failures := 0
	for _, path := range paths {
		if err := validateOne(p, path, out); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d plan file(s) failed validation", failures, len(paths))
	}
	return nil
}

func validateOne(p *parser.MarkdownParser, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open: %w", err)
	}
	defer f.Close()

	planFile, err := p.Parse(f)
	if err != nil {
		return err
	}
	seeded := 0
	days := make([]int, 0, len(planFile.SeedTasks))
	for day, tasks := range planFile.SeedTasks {
		seeded += len(tasks)
		days = append(days, day)
	}
	sort.Ints(days)

	fmt.Fprintf(out, "✓ %s: %q over %d day(s), %d seeded task(s)\n", path, planFile.Goal, planFile.DurationDays, seeded)
	for _, day := range days {
		for _, task := range planFile.SeedTasks[day] {
			marker := ""
			if task.IsIrreversible {
				marker = " [irreversible]"
			}
			fmt.Fprintf(out, "    day %d: %s%s\n", day+1, task.Title, marker)
		}
	}
	return nil
}
