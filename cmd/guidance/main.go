// Package main provides the guidance binary entry point.
// Guidance is a documentation-and-workflow coordination service that serves
// category/collection-organized content to an AI agent over a tool boundary
// and supervises the background tasks that steer the agent's workflow.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/c360studio/guidance/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "guidance"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Local .env overrides are optional.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "guidance",
		Short: "Documentation and workflow coordination service",
		Long: `Guidance serves category/collection-organized documentation to an
AI agent and supervises the cooperative tasks that steer its workflow:
template-derived instructions, workflow-state monitoring, client probing,
and retry of unacknowledged instructions.

The service speaks JSON lines on stdin/stdout; each request is a tool call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	// Config init command
	cmd.AddCommand(&cobra.Command{
		Use:   "config-init",
		Short: "Create the default user config file if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(nil).EnsureUserConfig()
		},
	})

	return cmd
}
