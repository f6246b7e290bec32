package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/carepath/internal/config"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var setupFlags struct {
	project     bool
	force       bool
	userEmail   string
	formsDir    string
	logLevel    string
	metricsAddr string
	acknowledge bool
	headless    bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create carepath configuration file",
	Long: `Create a carepath configuration file.

By default, creates a global config at ~/.config/carepath/carepath.yml.
Use --project to create a project-local config in the current directory.

The file is written from the defaults, the values already in the target file,
and any flags given here. CAREPATH_* environment variables and the other
config location are not copied. With --force over an existing file, the
changes are shown as a diff before writing.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
	setupCmd.Flags().StringVar(&setupFlags.userEmail, "user-email", "", "Email submissions are attributed to")
	setupCmd.Flags().StringVar(&setupFlags.formsDir, "forms-dir", "", "Directory of flow schema overrides")
	setupCmd.Flags().StringVar(&setupFlags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	setupCmd.Flags().StringVar(&setupFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	setupCmd.Flags().BoolVar(&setupFlags.acknowledge, "acknowledge", true, "Acknowledge receipts on the submission desk")
	setupCmd.Flags().BoolVar(&setupFlags.headless, "headless", false, "Submit without the TUI by default")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	exists := fileExists(targetPath)
	if !setupFlags.force && exists {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	next, err := setupConfig(targetPath, cmd.Flags())
	if err != nil {
		return err
	}

	if exists {
		before, err := os.ReadFile(targetPath)
		if err != nil {
			return fmt.Errorf("failed to read existing config: %w", err)
		}
		after, err := config.Marshal(next)
		if err != nil {
			return err
		}
		if diff := configDiff(targetPath, before, after); diff != "" {
			fmt.Fprintln(cmd.OutOrStdout(), colorize(diff, "diff"))
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}

	if setupFlags.project {
		err = config.WriteProject(next)
	} else {
		err = config.WriteGlobal(next)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config written to: %s\n\n", targetPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'carepath claim' or 'carepath roi' to get started.")
	return nil
}

// setupConfig returns the defaults overlaid with the file at path and then
// with the setup flags the user actually set.
func setupConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	c, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if flags.Changed("user-email") {
		if err := validateEmail(setupFlags.userEmail); err != nil {
			return nil, fmt.Errorf("invalid --user-email: %w", err)
		}
		c.UserEmail = setupFlags.userEmail
	}
	if flags.Changed("forms-dir") {
		c.FormsDir = setupFlags.formsDir
	}
	if flags.Changed("log-level") {
		if _, err := logger.ParseLevel(setupFlags.logLevel); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		c.LogLevel = setupFlags.logLevel
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr = setupFlags.metricsAddr
	}
	if flags.Changed("acknowledge") {
		c.Acknowledge = setupFlags.acknowledge
	}
	if flags.Changed("headless") {
		c.Headless = setupFlags.headless
	}
	return c, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
