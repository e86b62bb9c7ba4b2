package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect stored assets",
	}

	assetsCmd.AddCommand(newAssetsListCommand(ctx))
	assetsCmd.AddCommand(newAssetsShowCommand(ctx))

	return assetsCmd
}

func newAssetsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Assets(statusFilter...)
				if err != nil {
					return fmt.Errorf("list assets: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(resp.Assets) == 0 {
					fmt.Fprintln(out, "No assets")
					return nil
				}
				rows := make([][]string, 0, len(resp.Assets))
				for _, a := range resp.Assets {
					rows = append(rows, []string{
						a.ID,
						a.Status,
						fmt.Sprintf("%d%%", int(a.Progress*100)),
						a.CaptureMode,
						fmt.Sprintf("%dx%d", a.Width, a.Height),
						a.Caption,
						a.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Progress", "Mode", "Size", "Caption", "Created"},
					rows,
					3, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Filter by status (draft, uploading, uploaded, failed)")
	return cmd
}

func newAssetsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show one asset in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Assets()
				if err != nil {
					return fmt.Errorf("list assets: %w", err)
				}
				for _, a := range resp.Assets {
					if a.ID != args[0] {
						continue
					}
					printAssetDetail(cmd, a)
					return nil
				}
				return fmt.Errorf("asset %s not found", args[0])
			})
		},
	}
}

func printAssetDetail(cmd *cobra.Command, a ipc.AssetSummary) {
	p := newDetailPrinter(cmd.OutOrStdout())
	p.section("Asset " + a.ID)
	kind := kindInfo
	switch a.Status {
	case "uploaded":
		kind = kindGood
	case "failed":
		kind = kindBad
	}
	p.line(kind, "Status", a.Status)
	p.line(kindInfo, "Mode", a.CaptureMode)
	p.line(kindInfo, "Size", fmt.Sprintf("%dx%d %s", a.Width, a.Height, a.MIMEType))
	p.line(kindInfo, "Created", a.CreatedAt)
	if a.Caption != "" {
		p.line(kindInfo, "Caption", a.Caption)
	}
	if a.ContentID != "" {
		p.line(kindGood, "Content ID", a.ContentID)
		p.line(kindGood, "Network", a.NetworkID)
	}
	if a.ErrorMessage != "" {
		detail := a.ErrorMessage
		if a.ErrorType != "" {
			detail = fmt.Sprintf("%s (%s)", a.ErrorMessage, strings.ReplaceAll(a.ErrorType, "_", " "))
		}
		p.line(kindBad, "Error", detail)
	}
}
