package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hookd/internal/daemonctl"
	"hookd/internal/hook"
)

// newHookCommand builds the forwarder wired into the agent's hook settings.
// It must never break the agent: any fault short of a daemon deny prints the
// empty object and exits zero.
func newHookCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook <event>",
		Short: "Forward a hook event from stdin to the policy daemon",
		Long: "Reads one hook payload from stdin, lazily starts the daemon if needed, " +
			"and prints the daemon's decision to stdout. Designed to run as the hook " +
			"command for every configured event.",
		Args: cobra.ExactArgs(1),
		// Config faults must not surface as command errors here: the
		// preflight load is skipped and socket resolution falls back to
		// defaults, so a broken config still yields {} and exit 0.
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			event := args[0]
			stdout := cmd.OutOrStdout()

			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				fmt.Fprintln(stdout, string(hook.EmptyResponse))
				return nil
			}

			resp, err := forwardEvent(ctx, event, payload)
			if err != nil {
				fmt.Fprintln(stdout, string(hook.EmptyResponse))
				return nil
			}
			fmt.Fprintln(stdout, string(resp))
			return nil
		},
	}
	return cmd
}

func forwardEvent(ctx *commandContext, event string, payload []byte) ([]byte, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	result, err := daemonctl.EnsureStarted(
		ctx.socketPath(),
		exe,
		launchOptions(ctx),
		10*time.Second,
	)
	if err != nil {
		return nil, err
	}
	return result.Client.Forward(event, payload)
}

func launchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.socketFlag != nil {
		opts.SocketPath = *ctx.socketFlag
	}
	return opts
}
