package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

var (
	passColor  = color.New(color.FgGreen, color.Bold).SprintFunc()
	failColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	dimColor   = color.New(color.Faint).SprintFunc()
	titleColor = color.New(color.Bold).SprintFunc()
)

func verdict(ok bool) string {
	if ok {
		return passColor("PASS")
	}
	return failColor("FAIL")
}

func difficultyLabel(d domain.Difficulty) string {
	switch d {
	case domain.DifficultyEasy:
		return color.GreenString("%-6s", d)
	case domain.DifficultyMedium:
		return color.YellowString("%-6s", d)
	case domain.DifficultyHard:
		return color.RedString("%-6s", d)
	}
	return fmt.Sprintf("%-6s", d)
}

// printValidation writes a single verdict with its feedback, flags and
// captured console output
func printValidation(w io.Writer, res domain.ValidationResult) {
	fmt.Fprintf(w, "%s  %s\n", verdict(res.Success), res.Feedback)
	if res.Mode == domain.ModePatternOnly {
		fmt.Fprintf(w, "      %s\n", dimColor("checked by pattern only"))
	}
	if res.Actual != nil && !res.Success {
		fmt.Fprintf(w, "      got: %s\n", value.Display(res.Actual))
	}
	for _, f := range res.AntiCheatFlags {
		fmt.Fprintf(w, "      %s %s: %s\n", warnColor("flag"), f.Kind, f.Detail)
	}
	printLogs(w, res.DiagnosticsLog)
}

func printTestRun(w io.Writer, res domain.TestRunResults) {
	for _, c := range res.CaseResults {
		desc := c.TestCase.Description
		if desc == "" {
			desc = fmt.Sprintf("case %d", c.Index+1)
		}
		fmt.Fprintf(w, "%s  %s %s\n", verdict(c.Validation.Success), desc, dimColor(c.Duration.Round(time.Millisecond)))
		if !c.Validation.Success {
			fmt.Fprintf(w, "      %s\n", c.Validation.Feedback)
		}
	}

	summary := fmt.Sprintf("%d/%d passed in %s", res.Passed(), len(res.CaseResults), res.TotalDuration.Round(time.Millisecond))
	if res.AllPassed {
		fmt.Fprintln(w, passColor(summary))
	} else {
		fmt.Fprintln(w, failColor(summary))
	}
}

func printLogs(w io.Writer, logs []string) {
	if len(logs) == 0 {
		return
	}
	fmt.Fprintln(w, dimColor("      console:"))
	for _, line := range logs {
		fmt.Fprintf(w, "      %s\n", dimColor(strings.TrimRight(line, "\n")))
	}
}
