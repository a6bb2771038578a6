package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strand",
		Short:         "Hub-and-spoke AI agent gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildChatCmd(), buildVersionCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long: `Start the gateway: the TCP/WebSocket hub, the session store, the
background task queue, and the admin HTTP surface. Shuts down gracefully
on SIGINT and SIGTERM.`,
		Example: `  # Start with defaults
  strand serve

  # Start with a config file
  strand serve --config /etc/strand/strand.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in the terminal",
		Long: `Run an interactive agent session in the terminal without starting
a server. With --offline a mock model is used, so no API key or network
is needed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), configPath, offline)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the built-in mock model")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "strand %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
