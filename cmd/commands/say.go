package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hupe1980/vexora/core"
	"github.com/hupe1980/vexora/fns"
)

// NewSayCommand returns the say subcommand.
func NewSayCommand() *cli.Command {
	return &cli.Command{
		Name:      "say",
		Usage:     "Send a message and print the reply",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "thread",
				Aliases: []string{"t"},
				Usage:   "Thread ID to continue (empty = new thread)",
			},
			&cli.StringFlag{
				Name:    "instructions",
				Aliases: []string{"i"},
				Usage:   "Additional instructions for the reply",
			},
		},
		Action: runSay,
	}
}

func runSay(ctx context.Context, cmd *cli.Command) error {
	message, err := input(cmd, "say <message>")
	if err != nil {
		return err
	}

	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	threadID := cmd.String("thread")
	if threadID == "" {
		threadID = core.NewThreadID()
		fmt.Fprintf(os.Stderr, "thread: %s\n", threadID)
	}

	reply, err := fns.Say(ctx, message,
		fns.WithRuntime(v.Runtime()),
		fns.WithThreadID(threadID),
		fns.WithInstructions(cmd.String("instructions")),
	)
	if err != nil {
		return err
	}

	fmt.Println(reply)

	return nil
}
