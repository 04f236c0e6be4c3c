package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"schedkit/internal/app"
	"schedkit/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config, including DST handling of wall clock times",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewManager(configPath).Parse(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.Check(cmd.Context(), cfg, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d jobs)\n", configPath, len(cfg.Jobs))
		return nil
	},
}
