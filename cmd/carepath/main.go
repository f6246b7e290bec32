package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/mark3labs/carepath/internal/config"
	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/tui/theme"
	"github.com/spf13/cobra"
)

const (
	logoText1 = "█▀▀ ▄▀█ █▀█ █▀▀ █▀█ ▄▀█ ▀█▀ █ █"
	logoText2 = "█▄▄ █▀█ █▀▄ ██▄ █▀▀ █▀█  █  █▀█"
)

// Version set via ldflags during build
var version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "carepath",
	Short: "Healthcare claim and records-release forms in the terminal",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		logger.Debug("Running %s", cmd.CommandPath())
		return nil
	},
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

// loadRegistry compiles the built-in flows plus any overrides in forms_dir.
func loadRegistry() (*forms.Registry, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.FormsDir
	}
	reg, err := forms.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load forms: %w", err)
	}
	return reg, nil
}

func init() {
	rootCmd.Long = renderLogo() + `

carepath walks members through multi-step healthcare forms: submitting a
claim and creating a HIPAA release-of-information authorization. Each form
is a linear wizard that only advances when the current step is valid.

Forms can be filled in a full-screen TUI, headlessly from flags, or by an
agent through MCP tools. Submitted receipts are acknowledged on an embedded
NATS JetStream desk.

Configuration precedence:
  CLI flags > CAREPATH_* env > ./carepath.yml > ~/.config/carepath/carepath.yml > defaults`

	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(roiCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(signoutCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(mcpCmd)
}
