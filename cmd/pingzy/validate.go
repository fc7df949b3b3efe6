package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/pingzy/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Pingzy configuration without starting to monitor.

The file is parsed, environment variables are expanded and applied, and
every field is checked. All problems are reported at once. Settings that
are valid but probably unintended are printed as warnings.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (details on stderr)

Example:
  pingzy validate -c pingzy.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  URLs:     %d\n", len(cfg.URLs))
	fmt.Fprintf(out, "  Interval: %s\n", cfg.CheckInterval())
	for _, w := range warnings(cfg) {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}

func warnings(cfg config.Config) []string {
	var ws []string
	if cfg.Slack.URL == "" {
		ws = append(ws, "slack.url is empty, notifications are disabled")
	}
	if cfg.API.Addr != "" {
		if len(cfg.API.PublicKeys) == 0 && len(cfg.API.AdminKeys) == 0 {
			ws = append(ws, "api.addr is set but no API keys are configured, read routes are open")
		}
		if len(cfg.API.AdminKeys) == 0 {
			ws = append(ws, "no admin keys, anyone can trigger POST /api/summary")
		}
		if len(cfg.API.AllowedOrigins) == 0 {
			ws = append(ws, "api.allowed_origins is empty, any origin may call the API")
		}
	}
	if cfg.DatabaseURL == "" {
		ws = append(ws, "database_url is empty, check history is kept in memory only")
	}
	return ws
}

