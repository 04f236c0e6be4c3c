package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "schedkit/pkg/logx"
)

// sdNotify reports state to systemd. Outside a notify-type unit it is a
// no-op.
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Trace("systemd notified", logx.String("state", state))
	}
}

func notifyReady(log logx.Logger)     { sdNotify(log, daemon.SdNotifyReady) }
func notifyReloading(log logx.Logger) { sdNotify(log, daemon.SdNotifyReloading) }
func notifyStopping(log logx.Logger)  { sdNotify(log, daemon.SdNotifyStopping) }

// startWatchdog pings systemd at half the configured watchdog interval
// when WatchdogSec is set on the unit.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog check failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	a.sup.Go("systemd.watchdog", func(ctx context.Context) error {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				sdNotify(a.log, daemon.SdNotifyWatchdog)
			}
		}
	})
}
