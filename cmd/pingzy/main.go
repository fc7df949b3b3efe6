// Package main is the entry point for the pingzy CLI.
//
// Usage:
//
//	pingzy serve -c pingzy.yaml          # Start monitoring
//	pingzy serve --url https://a.example # Config from flags and env only
//	pingzy validate -c pingzy.yaml       # Check a config file
//	pingzy version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags, e.g. -X main.version=1.0.0
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pingzy",
	Short: "A minimal uptime monitor",
	Long: `Pingzy probes a fixed list of URLs on an interval and posts to Slack
when a site goes down, stays down, or comes back.

A site is declared down after two consecutive failed checks. While it stays
down a reminder is sent on every failed check once 15 minutes have passed.
A summary of all sites is posted once a day.

Example config:
  urls:
    - https://example.com
  interval: 5
  slack:
    url: ${SLACK_WEBHOOK}
    channel: "#ops"`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pingzy %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
