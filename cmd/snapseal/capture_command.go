package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var caption string
	var sourceURL string
	var sourceTitle string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a screenshot through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				result, err := client.Capture(ipc.CaptureRequest{
					Mode:        mode,
					Caption:     caption,
					SourceURL:   sourceURL,
					SourceTitle: sourceTitle,
				})
				if err != nil {
					return fmt.Errorf("capture: %w", err)
				}
				out := cmd.OutOrStdout()
				switch result.Outcome {
				case "captured":
					fmt.Fprintf(out, "Captured asset %s\n", result.AssetID)
				case "cancelled":
					fmt.Fprintf(out, "Capture cancelled: %s\n", result.Reason)
				default:
					return fmt.Errorf("capture failed: %s", result.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "visible", "Capture mode (visible or region)")
	cmd.Flags().StringVar(&caption, "caption", "", "Caption attached to the captured asset")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "URL of the page the screenshot documents")
	cmd.Flags().StringVar(&sourceTitle, "source-title", "", "Title of the source page")
	return cmd
}
