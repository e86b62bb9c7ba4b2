package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var token string
	var recorderID string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store registration credentials on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(token)
			if value == "" {
				fmt.Fprint(cmd.OutOrStdout(), "API token: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return fmt.Errorf("a non-empty token is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Login(value, strings.TrimSpace(recorderID)); err != nil {
					return fmt.Errorf("login: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (prompted when omitted)")
	cmd.Flags().StringVar(&recorderID, "recorder", "", "Recorder identifier stamped into manifests")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored registration credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Logout(); err != nil {
					return fmt.Errorf("logout: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}
