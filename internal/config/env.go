package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every override variable.
const EnvPrefix = "SCHEDKIT_"

// envOverrides lists the settings that can be replaced from the
// environment. Fields start from the file values; a set variable wins.
type envOverrides struct {
	Timezone       string  `env:"TIMEZONE, overwrite"`
	LogLevel       string  `env:"LOG_LEVEL, overwrite"`
	Latitude       float64 `env:"LATITUDE, overwrite"`
	Longitude      float64 `env:"LONGITUDE, overwrite"`
	Elevation      float64 `env:"ELEVATION, overwrite"`
	HolidaysDriver string  `env:"HOLIDAYS_DRIVER, overwrite"`
	HolidaysPath   string  `env:"HOLIDAYS_PATH, overwrite"`
}

// ApplyEnv overlays SCHEDKIT_* variables from the process environment.
func ApplyEnv(ctx context.Context, cfg *Config) error {
	return applyEnv(ctx, cfg, envconfig.OsLookuper())
}

func applyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	if cfg == nil {
		return nil
	}
	o := envOverrides{
		Timezone:       cfg.Timezone,
		LogLevel:       cfg.Logging.Level,
		Latitude:       cfg.Location.Latitude,
		Longitude:      cfg.Location.Longitude,
		Elevation:      cfg.Location.Elevation,
		HolidaysDriver: cfg.Holidays.Driver,
		HolidaysPath:   cfg.Holidays.Path,
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &o,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	}); err != nil {
		return err
	}
	cfg.Timezone = o.Timezone
	cfg.Logging.Level = o.LogLevel
	cfg.Location.Latitude = o.Latitude
	cfg.Location.Longitude = o.Longitude
	cfg.Location.Elevation = o.Elevation
	cfg.Holidays.Driver = o.HolidaysDriver
	cfg.Holidays.Path = o.HolidaysPath
	return nil
}
