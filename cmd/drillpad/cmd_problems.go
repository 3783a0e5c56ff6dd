package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

func problemsCommand() *cli.Command {
	return &cli.Command{
		Name:  "problems",
		Usage: "browse the problem bank",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list problems",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language or alias"},
					&cli.StringFlag{Name: "pack", Usage: "pack ID"},
					&cli.StringFlag{Name: "difficulty", Aliases: []string{"d"}, Usage: "easy, medium or hard"},
					&cli.StringFlag{Name: "tag", Usage: "tag"},
				},
				Action: cmdProblemsList,
			},
			{
				Name:      "show",
				Usage:     "show a problem",
				ArgsUsage: "<pack/slug>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "solution", Usage: "also print the sample solution"},
				},
				Action: cmdProblemsShow,
			},
		},
	}
}

func cmdProblemsList(ctx context.Context, cmd *cli.Command) error {
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	filter := problem.Filter{
		PackID:     cmd.String("pack"),
		Difficulty: domain.Difficulty(cmd.String("difficulty")),
		Tag:        cmd.String("tag"),
	}
	if l := cmd.String("lang"); l != "" {
		lang, err := domain.ParseLanguage(l)
		if err != nil {
			return err
		}
		filter.Language = lang
	}

	problems := a.Problems.List(filter)
	if len(problems) == 0 {
		fmt.Println("No problems match.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range problems {
		runnable := ""
		if !a.Runner.Supports(p.Language) {
			runnable = dimColor("pattern only")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Language, difficultyLabel(p.Difficulty), p.Title, runnable)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := a.Problems.Stats()
	fmt.Printf("\n%d of %d problems\n", len(problems), stats.Problems)
	return nil
}

func cmdProblemsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("problem ID required (e.g., js-arrays/filter-evens)")
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Problems.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", titleColor(p.Title), dimColor(p.ID))
	fmt.Printf("%s · %s · %s\n\n", p.Language, difficultyLabel(p.Difficulty), p.Category)
	if p.Prompt != "" {
		fmt.Printf("%s\n\n", strings.TrimSpace(p.Prompt))
	}
	if p.Setup != "" {
		fmt.Println(titleColor("Setup:"))
		fmt.Printf("%s\n\n", indent(p.Setup))
	}
	fmt.Printf("%s %s\n", titleColor("Expected:"), value.Display(p.Expected))
	if note := p.PatternNote; note != "" {
		fmt.Printf("%s %s\n", titleColor("Use:"), note)
	} else if srcs := p.PatternSources(); len(srcs) > 0 {
		fmt.Printf("%s %s\n", titleColor("Use:"), strings.Join(srcs, " or "))
	}
	for i, h := range p.Hints {
		fmt.Printf("%s %s\n", dimColor(fmt.Sprintf("Hint %d:", i+1)), h)
	}
	if len(p.TestCases) > 0 {
		fmt.Printf("%s %d\n", titleColor("Test cases:"), len(p.TestCases))
	}
	if cmd.Bool("solution") && p.SampleSolution != "" {
		fmt.Println(titleColor("\nSample solution:"))
		fmt.Println(indent(p.SampleSolution))
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
