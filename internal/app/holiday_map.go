package app

import (
	"fmt"
	"strings"
	"time"

	"schedkit/internal/config"
	"schedkit/internal/holiday"
)

// mapHolidayConfig converts the holidays section. enabled is false when no
// calendar is configured.
func mapHolidayConfig(cfg *config.Config) (holiday.Config, bool, error) {
	if cfg == nil {
		return holiday.Config{}, false, nil
	}
	hc := cfg.Holidays
	driver := strings.ToLower(strings.TrimSpace(hc.Driver))
	if driver == "" || driver == "none" {
		return holiday.Config{}, false, nil
	}

	weekend := []time.Weekday{time.Saturday, time.Sunday}
	if len(hc.Weekend) > 0 {
		weekend = weekend[:0]
		for _, n := range hc.Weekend {
			wd, err := holiday.WeekdayFromISO(n)
			if err != nil {
				return holiday.Config{}, false, fmt.Errorf("holidays.weekend: %w", err)
			}
			weekend = append(weekend, wd)
		}
	}
	out := holiday.Config{Driver: driver, Path: strings.TrimSpace(hc.Path), Weekend: weekend}

	switch driver {
	case "static", "file":
		return out, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("holidays.busy_timeout", hc.BusyTimeout, time.Second)
		if err != nil {
			return holiday.Config{}, false, err
		}
		out.BusyTimeout = busy
		return out, true, nil
	default:
		return holiday.Config{}, false, fmt.Errorf("unknown holidays.driver: %s", hc.Driver)
	}
}
