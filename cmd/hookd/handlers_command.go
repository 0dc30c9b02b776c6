package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHandlersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List the daemon's registered policy handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client := ctx.client()
			if !client.Ping() {
				fmt.Fprintln(stdout, "Daemon is not running (it starts on the first hook event)")
				return nil
			}
			resp, err := client.Handlers()
			if err != nil {
				return err
			}
			if len(resp.Handlers) == 0 {
				fmt.Fprintln(stdout, "No handlers registered")
				return nil
			}
			rows := make([][]string, 0, len(resp.Handlers))
			for _, h := range resp.Handlers {
				rows = append(rows, []string{
					h.Event,
					h.ID,
					strconv.Itoa(h.Priority),
					yesNo(h.Terminal),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Event", "Handler", "Priority", "Terminal"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}
