package config

// Config is the daemon configuration. Durations are Go duration strings
// (e.g. "500ms", "10s", "1m") and instants are RFC3339.
type Config struct {
	// Timezone is an IANA name used by time-of-day triggers and filters.
	// Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`

	// Location is the default observer for sun triggers.
	Location    LocationConfig    `json:"location"`
	Holidays    HolidaysConfig    `json:"holidays"`
	Logging     LoggingConfig     `json:"logging"`
	TaskManager TaskManagerConfig `json:"task_manager"`
	Jobs        []JobConfig       `json:"jobs"`
}

type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Elevation is meters above sea level.
	Elevation float64 `json:"elevation,omitempty"`
}

// HolidaysConfig selects the holiday calendar.
//
// Example:
//
//	"holidays": { "driver": "sqlite", "path": "./holidays.db", "weekend": [6, 7] }
type HolidaysConfig struct {
	Driver string `json:"driver,omitempty"` // none | file | sqlite
	Path   string `json:"path,omitempty"`
	// Weekend lists ISO weekdays (1=Mon..7=Sun). Default: [6, 7].
	Weekend     []int  `json:"weekend,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert duplicates records at or above MinLevel to a JSON-lines
// file, or stderr when Path is empty.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// TaskManagerConfig controls how job commands run.
//
// Defaults (when fields are omitted/zero):
//   - kind: "parallel"
//   - policy: "skip"
//   - history_size: 200
type TaskManagerConfig struct {
	Kind        string      `json:"kind,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Policy      string      `json:"policy,omitempty"`
	HistorySize int         `json:"history_size,omitempty"`
	Retry       RetryConfig `json:"retry"`
}

// RetryConfig retries failed commands with exponential backoff.
type RetryConfig struct {
	Max      int    `json:"max,omitempty"`
	Base     string `json:"base,omitempty"`
	MaxDelay string `json:"max_delay,omitempty"`
}

// JobConfig is one scheduled command. Name doubles as the job id.
type JobConfig struct {
	Name     string   `json:"name"`
	Command  []string `json:"command"`
	Timeout  string   `json:"timeout,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`

	TriggerConfig
}

// TriggerConfig holds exactly one of At, Countdown, Time, Every, Sun, Cron
// or Group, plus optional operations and filters.
type TriggerConfig struct {
	At        string `json:"at,omitempty"`
	Countdown string `json:"countdown,omitempty"`

	Time       string `json:"time,omitempty"` // HH:MM[:SS]
	IfSkipped  string `json:"if_skipped,omitempty"`
	IfRepeated string `json:"if_repeated,omitempty"`

	Every  string `json:"every,omitempty"`
	Anchor string `json:"anchor,omitempty"`

	Sun   *SunConfig      `json:"sun,omitempty"`
	Cron  string          `json:"cron,omitempty"`
	Group []TriggerConfig `json:"group,omitempty"`

	Offset   string       `json:"offset,omitempty"`
	Earliest *ClampConfig `json:"earliest,omitempty"`
	Latest   *ClampConfig `json:"latest,omitempty"`
	// Jitter is [low, high], e.g. ["-30s", "30s"].
	Jitter []string `json:"jitter,omitempty"`

	Filter *FilterConfig `json:"filter,omitempty"`
}

type SunConfig struct {
	// Event is sunrise | sunset | noon | dawn | dusk | elevation | azimuth.
	Event string `json:"event"`
	// Depression is civil | nautical | astronomical for dawn and dusk.
	Depression string  `json:"depression,omitempty"`
	Elevation  float64 `json:"elevation,omitempty"`
	// Direction is rising | setting for elevation events.
	Direction string  `json:"direction,omitempty"`
	Azimuth   float64 `json:"azimuth,omitempty"`
}

type ClampConfig struct {
	Time       string `json:"time"`
	IfSkipped  string `json:"if_skipped,omitempty"`
	IfRepeated string `json:"if_repeated,omitempty"`
}

// FilterConfig combines its set fields with AND.
type FilterConfig struct {
	Weekdays []int          `json:"weekdays,omitempty"` // ISO 1=Mon..7=Sun
	Days     []int          `json:"days,omitempty"`
	Months   []int          `json:"months,omitempty"`
	Between  *BetweenConfig `json:"between,omitempty"`
	// Holidays is only | skip | workdays | non_workdays.
	Holidays string        `json:"holidays,omitempty"`
	Not      *FilterConfig `json:"not,omitempty"`
}

// BetweenConfig is a time-of-day window, From inclusive and To exclusive.
// Either bound may be empty.
type BetweenConfig struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}
