package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/sitegen/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitegen.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegen",
		Short: "File-routed site server and static site generator",
		Long: `sitegen serves a directory of page templates as a website and builds it
into static files.

Every template under the content directory is a route: pages/about.gohtml
answers /about, pages/blog/index.gohtml answers /blog and pages/users/:id.gohtml
answers /users/42. A build crawls the rendered site from its root URL (or
renders every page of a directory) and writes one file per URL.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: "+configFileName+" in current, XDG config or home directory)")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(NewBuildCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRoutesCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the secure logger for cmd and installs it as default.
func setupLogger(cmd *cobra.Command) (*slog.Logger, error) {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format = "text"
	}
	logger, err := log.New(cmd.ErrOrStderr(), getVerboseFlag(cmd), format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
