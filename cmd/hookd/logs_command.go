package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"hookd/internal/logging"
)

const (
	ansiReset  = "\x1b[0m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var count int
	var level string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client := ctx.client()
			if !client.Ping() {
				fmt.Fprintln(stdout, "Daemon is not running (it starts on the first hook event)")
				return nil
			}
			resp, err := client.Logs(count, level)
			if err != nil {
				return err
			}
			if len(resp.Events) == 0 {
				fmt.Fprintln(stdout, "No log events buffered")
				return nil
			}
			colorize := shouldColorize(stdout)
			for _, event := range resp.Events {
				fmt.Fprintln(stdout, formatLogEvent(event, colorize))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "Maximum number of events to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func formatLogEvent(event logging.LogEvent, colorize bool) string {
	var b strings.Builder
	b.WriteString(event.Timestamp.Format("15:04:05.000"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(event.Level))
	if event.Component != "" {
		b.WriteString(" [")
		b.WriteString(event.Component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(event.Message)
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" ")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(event.Fields[k])
		}
	}
	line := b.String()
	if colorize {
		switch strings.ToLower(event.Level) {
		case "warn":
			return ansiYellow + line + ansiReset
		case "error":
			return ansiRed + line + ansiReset
		}
	}
	return line
}
