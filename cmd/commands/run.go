package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hupe1980/vexora/task"
	"github.com/hupe1980/vexora/thread"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a task and print its result as JSON",
		ArgsUsage: "<instructions>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "thread",
				Aliases: []string{"t"},
				Usage:   "Thread ID to run in (empty = new thread)",
			},
			&cli.StringSliceFlag{
				Name:  "context",
				Usage: "Context value as key=value (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "allow-failure",
				Usage: "Exit successfully when the actor marks the task as failed",
			},
		},
		Action: runTask,
	}
}

func runTask(ctx context.Context, cmd *cli.Command) error {
	instructions, err := input(cmd, "run <instructions>")
	if err != nil {
		return err
	}

	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	values, err := parseContext(cmd.StringSlice("context"))
	if err != nil {
		return err
	}

	opts := []func(o *task.Options){
		task.WithRuntime(v.Runtime()),
		task.WithContext(values),
	}
	if id := cmd.String("thread"); id != "" {
		opts = append(opts, task.WithThread(thread.ByID(id)))
	}

	o := task.RunAsync[any](ctx, instructions, opts...).Outcome(ctx)
	if o.Failed() {
		if cmd.Bool("allow-failure") {
			fmt.Fprintf(os.Stderr, "task failed: %v\n", o.Err)
			return nil
		}
		return o.Err
	}

	return printJSON(o.Value)
}

func parseContext(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context %q, expected key=value", p)
		}
		values[k] = v
	}

	return values, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
