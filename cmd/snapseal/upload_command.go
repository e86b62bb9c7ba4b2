package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <asset-id> [asset-id...]",
		Short: "Enqueue draft assets for registration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Upload(args...)
				if err != nil {
					return fmt.Errorf("enqueue upload: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d asset(s)\n", resp.Enqueued)
				return nil
			})
		},
	}
}
