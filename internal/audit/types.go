package audit

import "time"

// Run is one recorded scrub over a file.
type Run struct {
	ID               int64     `db:"id" json:"id"`
	Mode             string    `db:"mode" json:"mode"`
	InputPath        string    `db:"input_path" json:"input_path"`
	OutputPath       string    `db:"output_path" json:"output_path"`
	LinesProcessed   int64     `db:"lines_processed" json:"lines_processed"`
	BytesWritten     int64     `db:"bytes_written" json:"bytes_written"`
	RepairedLines    int64     `db:"repaired_lines" json:"repaired_lines"`
	Chunks           int       `db:"chunks" json:"chunks"`
	Workers          int       `db:"workers" json:"workers"`
	DurationMs       int64     `db:"duration_ms" json:"duration_ms"`
	RuleCount        int       `db:"rule_count" json:"rule_count"`
	RulesFingerprint string    `db:"rules_fingerprint" json:"rules_fingerprint"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Stats summarizes the recorded run history.
type Stats struct {
	TotalRuns     int64   `db:"total_runs" json:"total_runs"`
	TotalLines    int64   `db:"total_lines" json:"total_lines"`
	TotalBytes    int64   `db:"total_bytes" json:"total_bytes"`
	AvgDurationMs float64 `db:"avg_duration_ms" json:"avg_duration_ms"`
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}
