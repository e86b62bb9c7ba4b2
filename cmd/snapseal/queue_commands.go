package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx, true))
	queueCmd.AddCommand(newQueuePauseCommand(ctx, false))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending uploads in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				queue, err := client.Queue()
				if err != nil {
					return fmt.Errorf("fetch queue: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queue state: %s\n", queue.State)
				if len(queue.Pending) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(queue.Pending))
				for i, id := range queue.Pending {
					rows = append(rows, []string{fmt.Sprintf("%d", i+1), id})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Asset ID"}, rows, 1))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <asset-id> [asset-id...]",
		Short: "Re-enqueue failed assets and resume uploads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(args...)
				if err != nil {
					return fmt.Errorf("retry: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d asset(s)\n", resp.Retried)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <asset-id>",
		Short: "Delete an asset and drop it from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Remove(args[0]); err != nil {
					return fmt.Errorf("remove: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueuePauseCommand(ctx *commandContext, pause bool) *cobra.Command {
	use := "pause"
	short := "Pause upload processing"
	if !pause {
		use = "resume"
		short = "Resume upload processing"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause(pause)
				if err != nil {
					return fmt.Errorf("%s queue: %w", use, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue state: %s\n", resp.State)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Delete all failed assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearFailed()
				if err != nil {
					return fmt.Errorf("clear failed assets: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d failed asset(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
