package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "schedd",
	Short: "schedd - run commands on time, interval, cron and sun triggers",
	Long: `schedd runs the jobs defined in a YAML or JSON config file.

Examples:
  schedd run --config /etc/schedkit.yaml     # run the daemon
  schedd next --job backup --count 5          # preview upcoming runs
  schedd check                                # validate the config`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./schedkit.yaml", "path to config (yaml or json)")
	rootCmd.AddCommand(runCmd, nextCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
