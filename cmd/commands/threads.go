package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hupe1980/vexora/core"
)

// NewThreadsCommand returns the threads subcommand.
func NewThreadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "threads",
		Usage: "Inspect stored threads",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all threads",
				Action: runThreadsList,
			},
			{
				Name:      "show",
				Usage:     "Show the messages of a thread",
				ArgsUsage: "<thread_id>",
				Action:    runThreadsShow,
			},
		},
		DefaultCommand: "list",
	}
}

func runThreadsList(ctx context.Context, _ *cli.Command) error {
	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	list, err := v.Threads().List(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No threads found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMESSAGES\tCREATED\tUPDATED")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			t.ID,
			t.MessageCount,
			t.Created.Format("2006-01-02 15:04"),
			t.Updated.Format("2006-01-02 15:04"),
		)
	}

	return w.Flush()
}

func runThreadsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: vexora threads show <thread_id>")
	}

	v, err := runtimeFrom(ctx)
	if err != nil {
		return err
	}

	th, err := v.Threads().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}

	msgs := th.GetMessages()
	if len(msgs) == 0 {
		fmt.Println("No messages in this thread.")
		return nil
	}

	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Author, describe(m))
	}

	return nil
}

// describe renders a message as one line.
func describe(m core.Message) string {
	if text := m.Text(); text != "" {
		return text
	}

	if calls := m.FunctionCalls(); len(calls) > 0 {
		out := make([]string, 0, len(calls))
		for _, c := range calls {
			out = append(out, fmt.Sprintf("%s(%s)", c.Name, c.Arguments))
		}
		return strings.Join(out, ", ")
	}

	if resps := m.FunctionResponses(); len(resps) > 0 {
		return fmt.Sprintf("%s -> %v", resps[0].Name, resps[0].Response)
	}

	return "-"
}
