package commands

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hupe1980/vexora/fns"
)

// NewGenerateCommand returns the generate subcommand.
func NewGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate values from instructions and print them as a JSON list",
		ArgsUsage: "<instructions>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of values",
				Value:   1,
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	// missing instructions are reported by Generate itself
	instructions := strings.Join(cmd.Args().Slice(), " ")

	values, err := fns.Generate[any](ctx, cmd.Int("count"),
		fns.WithRuntime(v.Runtime()),
		fns.WithInstructions(instructions),
	)
	if err != nil {
		return err
	}

	return printJSON(values)
}

// NewSchemaCommand returns the schema subcommand.
func NewSchemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Generate a JSON schema from a description",
		ArgsUsage: "<description>",
		Action:    runSchema,
	}
}

func runSchema(ctx context.Context, cmd *cli.Command) error {
	description, err := input(cmd, "schema <description>")
	if err != nil {
		return err
	}

	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	schema, err := fns.GenerateSchema(ctx, description, fns.WithRuntime(v.Runtime()))
	if err != nil {
		return err
	}

	return printJSON(schema)
}
