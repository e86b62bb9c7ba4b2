package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snapseal/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and update capture settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsGet()
				if err != nil {
					return fmt.Errorf("fetch settings: %w", err)
				}
				printSettings(cmd, resp.Settings)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one setting",
		Long: "Update one setting. Keys: auto-upload, timestamp-stamp, location, " +
			"attach-source (true/false) and default-caption (text).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.SettingsGet()
				if err != nil {
					return fmt.Errorf("fetch settings: %w", err)
				}
				updated, err := applySetting(current.Settings, args[0], args[1])
				if err != nil {
					return err
				}
				resp, err := client.SettingsSet(updated)
				if err != nil {
					return fmt.Errorf("store settings: %w", err)
				}
				printSettings(cmd, resp.Settings)
				return nil
			})
		},
	}
}

func applySetting(s ipc.SettingsPayload, key, value string) (ipc.SettingsPayload, error) {
	parseBool := func() (bool, error) {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("setting %s expects true or false, got %q", key, value)
		}
		return parsed, nil
	}

	switch key {
	case "auto-upload":
		parsed, err := parseBool()
		if err != nil {
			return s, err
		}
		s.AutoUpload = parsed
	case "timestamp-stamp":
		parsed, err := parseBool()
		if err != nil {
			return s, err
		}
		s.TimestampStamp = parsed
	case "location":
		parsed, err := parseBool()
		if err != nil {
			return s, err
		}
		s.LocationEnabled = parsed
	case "attach-source":
		parsed, err := parseBool()
		if err != nil {
			return s, err
		}
		s.AttachSource = parsed
	case "default-caption":
		s.DefaultCaption = value
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	return s, nil
}

func printSettings(cmd *cobra.Command, s ipc.SettingsPayload) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Setting", "Value"},
		[][]string{
			{"auto-upload", yesNo(s.AutoUpload)},
			{"timestamp-stamp", yesNo(s.TimestampStamp)},
			{"location", yesNo(s.LocationEnabled)},
			{"attach-source", yesNo(s.AttachSource)},
			{"default-caption", s.DefaultCaption},
		},
	))
}
