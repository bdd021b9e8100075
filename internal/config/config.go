// Package config provides configuration structures and loading for QTrace.
package config

import (
	"fmt"

	"github.com/dbsmedya/qtrace/pattern"
)

// Config represents the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Trace    TraceConfig    `yaml:"trace" mapstructure:"trace"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// WatchConfig lists the statements to echo with their call sites.
type WatchConfig struct {
	Literals []string `yaml:"literals" mapstructure:"literals"` // matched as plain substrings
	Patterns []string `yaml:"patterns" mapstructure:"patterns"` // regular expressions
}

// TraceConfig controls how watched statements are echoed.
type TraceConfig struct {
	Prefix        string   `yaml:"prefix" mapstructure:"prefix"`
	ExcludeFrames []string `yaml:"exclude_frames" mapstructure:"exclude_frames"`
}

// ReportConfig controls the statistics report printed at shutdown.
type ReportConfig struct {
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
	Color  bool   `yaml:"color" mapstructure:"color"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Trace: TraceConfig{
			Prefix: "** ",
		},
		Report: ReportConfig{
			Output: "stdout",
			Color:  false,
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stderr",
		},
	}
}

// RegisterWatches adds every configured literal and pattern to r. It stops at
// the first pattern that does not compile.
func (c *Config) RegisterWatches(r *pattern.Registry) error {
	for _, literal := range c.Watch.Literals {
		r.WatchLiteral(literal)
	}
	for i, expr := range c.Watch.Patterns {
		if err := r.WatchPattern(expr); err != nil {
			return fmt.Errorf("watch.patterns[%d]: %w", i, err)
		}
	}
	return nil
}

// HasDatabase reports whether a target database is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.Host != ""
}
