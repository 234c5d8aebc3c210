// Package parser reads markdown plan files into seed tasks for the engine.
//
// A plan file carries YAML frontmatter (goal, duration, optional policy
// overrides) followed by "## Day N" sections whose list items each describe
// one task:
//
//	---
//	goal: Migrate billing to the new provider
//	duration_days: 5
//	policy:
//	  max_tokens: 50000
//	---
//
//	## Day 1
//
//	- Inventory current invoices | tokens=2000 api=10
//	- Delete legacy export bucket [irreversible]
//
// Days without a section get a synthesized task from the engine.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/autopilot/internal/config"
	"github.com/harrison/autopilot/internal/engine"
	"github.com/harrison/autopilot/internal/models"
)

// PlanFile is the parsed form of a markdown plan file.
type PlanFile struct {
	Goal         string
	DurationDays int
	Policy       *models.Policy
	SeedTasks    map[int][]engine.SeedTask
}

// frontmatter is the YAML header of a plan file.
type frontmatter struct {
	Goal         string               `yaml:"goal"`
	DurationDays int                  `yaml:"duration_days"`
	Policy       *config.PolicyConfig `yaml:"policy"`
}

// MarkdownParser parses markdown plan files.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a parser with default goldmark settings.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{markdown: goldmark.New()}
}

var dayHeadingRegex = regexp.MustCompile(`^Day\s+(\d+)$`)

// Parse reads a plan file from r.
func (p *MarkdownParser) Parse(r io.Reader) (*PlanFile, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	body, header := extractFrontmatter(content)
	if header == nil {
		return nil, fmt.Errorf("plan file is missing its frontmatter header")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if fm.Goal == "" {
		return nil, fmt.Errorf("frontmatter must set a goal")
	}
	if fm.DurationDays < models.MinDurationDays || fm.DurationDays > models.MaxDurationDays {
		return nil, fmt.Errorf("duration_days must be within [%d,%d], got %d",
			models.MinDurationDays, models.MaxDurationDays, fm.DurationDays)
	}

	plan := &PlanFile{
		Goal:         fm.Goal,
		DurationDays: fm.DurationDays,
		SeedTasks:    make(map[int][]engine.SeedTask),
	}
	if fm.Policy != nil {
		policy := fm.Policy.ToPolicy()
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy in frontmatter: %w", err)
		}
		plan.Policy = &policy
	}

	if err := p.extractSeedTasks(plan, body); err != nil {
		return nil, err
	}
	return plan, nil
}

// extractSeedTasks walks the markdown AST collecting "## Day N" sections
// and the task list items beneath them.
func (p *MarkdownParser) extractSeedTasks(plan *PlanFile, source []byte) error {
	doc := p.markdown.Parser().Parse(text.NewReader(source))

	currentDay := -1
	var walkErr error

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := n.(*ast.Heading); ok && heading.Level == 2 {
			headingText := extractText(heading, source)
			matches := dayHeadingRegex.FindStringSubmatch(headingText)
			if matches == nil {
				currentDay = -1
				return ast.WalkSkipChildren, nil
			}

			day, _ := strconv.Atoi(matches[1])
			if day < 1 || day > plan.DurationDays {
				walkErr = fmt.Errorf("day %d is outside the plan's %d-day range", day, plan.DurationDays)
				return ast.WalkStop, nil
			}
			currentDay = day - 1
			return ast.WalkSkipChildren, nil
		}

		if item, ok := n.(*ast.ListItem); ok && currentDay >= 0 {
			line := itemText(item, source)
			if line == "" {
				return ast.WalkSkipChildren, nil
			}
			seed, err := parseSeedTask(line)
			if err != nil {
				walkErr = fmt.Errorf("day %d: %w", currentDay+1, err)
				return ast.WalkStop, nil
			}
			plan.SeedTasks[currentDay] = append(plan.SeedTasks[currentDay], seed)
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}
	return walkErr
}

// parseSeedTask parses one task bullet: a title, an optional "| key=value"
// estimate section, and an optional trailing [irreversible] marker.
func parseSeedTask(line string) (engine.SeedTask, error) {
	seed := engine.SeedTask{}

	if strings.HasSuffix(line, "[irreversible]") {
		seed.IsIrreversible = true
		line = strings.TrimSpace(strings.TrimSuffix(line, "[irreversible]"))
	}

	title, meta, hasMeta := strings.Cut(line, "|")
	seed.Title = strings.TrimSpace(title)
	if seed.Title == "" {
		return seed, fmt.Errorf("task bullet has no title: %q", line)
	}
	if !hasMeta {
		return seed, nil
	}

	estimate := models.Usage{}
	for _, field := range strings.Fields(meta) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return seed, fmt.Errorf("malformed estimate field %q", field)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return seed, fmt.Errorf("estimate %q must be a non-negative integer", field)
		}
		switch key {
		case "tokens":
			estimate.TokensUsed = n
		case "api":
			estimate.APICalls = n
		case "conn":
			estimate.ConnectorActions = n
		case "minutes":
			estimate.RuntimeMinutes = n
		default:
			return seed, fmt.Errorf("unknown estimate key %q", key)
		}
	}
	seed.Estimated = &estimate
	return seed, nil
}

// itemText returns the first paragraph of text inside a list item.
func itemText(item *ast.ListItem, source []byte) string {
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch block := c.(type) {
		case *ast.TextBlock, *ast.Paragraph:
			return strings.TrimSpace(extractText(block, source))
		}
	}
	return ""
}

// extractText collects the text segments directly under a node.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// extractFrontmatter splits "---" delimited YAML frontmatter from the body.
// Returns (content, nil) when no frontmatter is present.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			header := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, header
		}
	}
	return content, nil
}
