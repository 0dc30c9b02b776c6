package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModeCommand(ctx *commandContext) *cobra.Command {
	modeCmd := &cobra.Command{
		Use:   "mode",
		Short: "Show the daemon's current policy mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client := ctx.client()
			if !client.Ping() {
				fmt.Fprintln(stdout, "Daemon is not running; it starts in default mode")
				return nil
			}
			resp, err := client.GetMode()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, resp.Mode)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <mode>",
		Short: "Switch the daemon's policy mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client := ctx.client()
			if !client.Ping() {
				return fmt.Errorf("daemon is not running; modes only apply to a live daemon")
			}
			resp, err := client.SetMode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Mode: %s\n", resp.Mode)
			if resp.Message != "" {
				fmt.Fprintln(stdout, resp.Message)
			}
			return nil
		},
	}
	modeCmd.AddCommand(setCmd)
	return modeCmd
}
