package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/testrun"
	"github.com/felixgeelhaar/drillpad/internal/validator"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

func langFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "lang",
		Aliases: []string{"l"},
		Usage:   "require the problem to be in this language",
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check a solution against a problem",
		ArgsUsage: "<pack/slug> [file|-]",
		Flags:     []cli.Flag{langFlag()},
		Action:    cmdValidate,
	}
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "run a solution against every test case of a problem",
		ArgsUsage: "<pack/slug> [file|-]",
		Flags: []cli.Flag{
			langFlag(),
			&cli.IntFlag{Name: "variations", Aliases: []string{"n"}, Usage: "generated cases to add"},
			&cli.Uint64Flag{Name: "seed", Usage: "variation seed (default: time based)"},
		},
		Action: cmdTest,
	}
}

func varyCommand() *cli.Command {
	return &cli.Command{
		Name:      "vary",
		Usage:     "show generated variations of a problem's setup",
		ArgsUsage: "<pack/slug>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 3, Usage: "variations to generate"},
			&cli.Uint64Flag{Name: "seed", Usage: "variation seed (default: time based)"},
		},
		Action: cmdVary,
	}
}

// exitFailed signals a failing verdict without printing an extra error
var exitFailed = cli.Exit("", 1)

func cmdValidate(ctx context.Context, cmd *cli.Command) error {
	a, p, code, err := loadSubmission(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run := domain.NewRun(domain.RunKindValidate, p.ID, p.Language)
	res := a.Validator.Validate(ctx, validator.Request{
		Run:      run,
		Language: p.Language,
		Problem:  p,
		Code:     code,
	})
	run.Finish(domain.RunStatusCompleted)

	printValidation(os.Stdout, res)
	if !res.Success {
		return exitFailed
	}
	return nil
}

func cmdTest(ctx context.Context, cmd *cli.Command) error {
	a, p, code, err := loadSubmission(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run := domain.NewRun(domain.RunKindTestRun, p.ID, p.Language)
	res, err := a.RunSuite(ctx, app.SuiteRequest{
		Run:        run,
		Problem:    p,
		Code:       code,
		Variations: cmd.Int("variations"),
		Seed:       seedFrom(cmd),
	})
	if err != nil {
		return err
	}
	run.Finish(domain.RunStatusCompleted)

	printTestRun(os.Stdout, res)
	if !res.AllPassed {
		return exitFailed
	}
	return nil
}

func cmdVary(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("problem ID required")
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

	seed := seedFrom(cmd)
	variations := testrun.GenerateVariations(p, cmd.Int("count"), seed)
	if len(variations) == 0 {
		fmt.Println("The setup has no numeric inputs to vary.")
		return nil
	}

	cases, err := a.TestRuns.Materialize(ctx, p.Language, p, variations)
	if err != nil {
		return err
	}
	fmt.Printf("%s (seed %d)\n", dimColor(p.ID), seed)
	for i, tc := range cases {
		fmt.Printf("\n%s\n%s\n", titleColor(fmt.Sprintf("Variation %d:", i+1)), indent(tc.Setup))
		fmt.Printf("    %s %s\n", dimColor("=>"), value.Display(tc.Expected))
	}
	return nil
}

// loadSubmission resolves the problem argument and reads the solution
func loadSubmission(ctx context.Context, cmd *cli.Command) (*app.App, *domain.Problem, string, error) {
	id := cmd.Args().First()
	if id == "" {
		return nil, nil, "", fmt.Errorf("problem ID required")
	}
	code, err := readCode(cmd.Args().Get(1), os.Stdin)
	if err != nil {
		return nil, nil, "", err
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return nil, nil, "", err
	}
	p, err := a.FindProblem(cmd.String("lang"), id)
	if err != nil {
		a.Close()
		return nil, nil, "", err
	}
	return a, p, code, nil
}

func seedFrom(cmd *cli.Command) uint64 {
	if s := cmd.Uint64("seed"); s != 0 {
		return s
	}
	return uint64(time.Now().UnixNano())
}
