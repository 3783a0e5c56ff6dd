package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/storage/sqlite"
)

func bankCommand() *cli.Command {
	return &cli.Command{
		Name:  "bank",
		Usage: "build the read-only problem bank",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import problem packs into a sealed SQLite bank",
				ArgsUsage: "<packs-dir> <bank.db>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "replace an existing bank file"},
				},
				Action: cmdBankImport,
			},
		},
	}
}

func cmdBankImport(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("usage: drillpad bank import <packs-dir> <bank.db>")
	}
	from, out := cmd.Args().Get(0), cmd.Args().Get(1)

	packs, problems, err := problem.NewLoader(from).LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load packs: %w", err)
	}

	if _, err := os.Stat(out); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("%s already exists (use --force to replace it)", out)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(out + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old bank: %w", err)
			}
		}
	}

	if err := writeBank(ctx, out, packs, problems); err != nil {
		return err
	}

	fmt.Printf("%s imported %d packs, %d problems into %s\n", passColor("✓"), len(packs), len(problems), out)
	return nil
}

func writeBank(ctx context.Context, path string, packs []*domain.ProblemPack, problems []*domain.Problem) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate bank: %w", err)
	}
	if err := sqlite.NewProblemStore(db).Import(ctx, packs, problems); err != nil {
		db.Close()
		return fmt.Errorf("import: %w", err)
	}
	if err := db.Seal(); err != nil {
		db.Close()
		return fmt.Errorf("seal bank: %w", err)
	}
	return db.Close()
}
