package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"schedkit/internal/app"
	"schedkit/internal/config"
)

var (
	nextJob   string
	nextCount int
	nextFrom  string
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print upcoming firing times without running anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		from := time.Now()
		if s := strings.TrimSpace(nextFrom); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			from = t
		}

		cfg, err := config.NewManager(configPath).Load(cmd.Context())
		if err != nil {
			return err
		}
		ups, err := app.Preview(cmd.Context(), cfg, nextJob, from, nextCount)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, u := range ups {
			fmt.Fprintf(out, "%s:\n", u.Job)
			if len(u.Times) == 0 && u.Err == nil {
				fmt.Fprintln(out, "  (no upcoming runs)")
			}
			for _, t := range u.Times {
				fmt.Fprintf(out, "  %s\n", t.Format(time.RFC3339))
			}
			if u.Err != nil {
				fmt.Fprintf(out, "  error: %v\n", u.Err)
			}
		}
		return nil
	},
}

func init() {
	nextCmd.Flags().StringVar(&nextJob, "job", "", "only this job")
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 5, "runs per job")
	nextCmd.Flags().StringVar(&nextFrom, "from", "", "start instant (RFC3339), default now")
}
