package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"schedkit/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := app.New(ctx, configPath)
		if err != nil {
			return err
		}
		if err := a.Start(ctx); err != nil {
			return err
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		var reason app.StopReason
		select {
		case sig := <-sigs:
			reason = app.StopSIGINT
			if sig == syscall.SIGTERM {
				reason = app.StopSIGTERM
			}
		case <-a.Done():
			reason = app.StopFatalError
		}

		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = a.Stop(stopCtx, reason)
		if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
