package holiday

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "schedkit/pkg/logx"
)

// Config configures the holiday calendar.
//
// Driver values:
//   - "file": YAML/JSON file loaded once
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", no calendar is opened.
type Config struct {
	Driver      string
	Path        string
	Weekend     []time.Weekday
	BusyTimeout time.Duration // sqlite only; 0 means default
}

func (c Config) weekdays() []time.Weekday { return c.Weekend }

// Store is a calendar backed by a resource that must be released.
type Store interface {
	Calendar
	Close() error
}

// Open initializes the configured calendar.
// It returns (nil, nil) if the calendar is disabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "static":
		return NewStatic(cfg.Weekend...), nil
	case "file":
		cal, err := LoadFile(cfg.Path, cfg.Weekend...)
		if err != nil {
			return nil, err
		}
		log.Debug("holiday calendar loaded", logx.String("path", cfg.Path), logx.Int("holidays", cal.Len()))
		return cal, nil
	case "sqlite", "sqlite3":
		cal, err := OpenSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return cal, nil
	default:
		return nil, errors.New("unknown holiday driver: " + driver)
	}
}
