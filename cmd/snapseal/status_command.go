package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return fmt.Errorf("fetch status: %w", err)
				}
				p := newDetailPrinter(cmd.OutOrStdout())

				p.section("Daemon")
				runningKind := kindBad
				running := "stopped"
				if status.Running {
					runningKind = kindGood
					running = fmt.Sprintf("running (pid %d)", status.PID)
				}
				p.line(runningKind, "Process", running)
				if status.LoggedIn {
					p.line(kindGood, "Session", "logged in")
				} else {
					p.line(kindWarn, "Session", "not logged in")
				}
				p.line(kindInfo, "Socket", status.SocketPath)

				p.section("Queue")
				stateKind := kindGood
				if status.QueueState == "paused" {
					stateKind = kindWarn
				}
				p.line(stateKind, "State", status.QueueState)
				p.line(kindInfo, "Pending", fmt.Sprintf("%d", len(status.Pending)))
				if len(status.Pending) > 0 {
					p.line(kindInfo, "Next", strings.Join(firstN(status.Pending, 3), ", "))
				}
				p.line(kindInfo, "Drafts", fmt.Sprintf("%d", status.Drafts))
				failedKind := kindInfo
				if status.Failed > 0 {
					failedKind = kindWarn
				}
				p.line(failedKind, "Failed", fmt.Sprintf("%d", status.Failed))
				return nil
			})
		},
	}
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
