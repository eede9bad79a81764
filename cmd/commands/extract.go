package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hupe1980/vexora/fns"
)

// NewExtractCommand returns the extract subcommand.
func NewExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract values from text and print them as a JSON list",
		ArgsUsage: "<text | ->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "instructions",
				Aliases: []string{"i"},
				Usage:   "What to extract, e.g. \"city names\"",
			},
		},
		Action: runExtract,
	}
}

func runExtract(ctx context.Context, cmd *cli.Command) error {
	data, err := input(cmd, "extract <text | ->")
	if err != nil {
		return err
	}

	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	values, err := fns.Extract[any](ctx, data,
		fns.WithRuntime(v.Runtime()),
		fns.WithInstructions(cmd.String("instructions")),
	)
	if err != nil {
		return err
	}

	return printJSON(values)
}
