// Package config declares the flag-bound configuration shared by
// cmd/vfsd and cmd/vfsbackend, following cobra's idiom of binding a
// struct's fields straight onto a command's flag set rather than
// parsing a config file format of its own.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Config is the flag-bound configuration common to both daemons. Each
// binary embeds this plus whatever flags are specific to it.
type Config struct {
	SocketPath string
	LogLevel   string
	LogJSON    bool
	MetricsAddr string

	TrashRescanInterval time.Duration
}

// Defaults returns the configuration a bare invocation runs with.
func Defaults() Config {
	return Config{
		SocketPath:          "/run/vfsfabric/tracker.sock",
		LogLevel:            "info",
		MetricsAddr:         "",
		TrashRescanInterval: 30 * time.Second,
	}
}

// BindFlags registers c's fields as persistent flags on cmd, following
// the struct-to-flag-set binding idiom pflag/cobra use throughout their
// own examples (StringVar/BoolVar/DurationVar against struct fields
// rather than package-level globals).
func (c *Config) BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.SocketPath, "socket", c.SocketPath, "path of the peer listen socket")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "trace, debug, info, warn, or error")
	flags.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "emit logs as JSON instead of text")
	flags.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "address to serve /metrics on, empty to disable")
	flags.DurationVar(&c.TrashRescanInterval, "trash-rescan-interval", c.TrashRescanInterval, "how often the trash aggregator rescans for new mounts")
}

// Validate reports the first configuration error found, if any.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("config: socket path must not be empty")
	}
	if c.TrashRescanInterval <= 0 {
		return fmt.Errorf("config: trash rescan interval must be positive")
	}
	return nil
}
