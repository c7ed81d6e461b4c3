// Package logging sets up the process-wide logrus logger shared by the
// mount tracker daemon and the backend host daemon, following the
// setup/level/formatter conventions used throughout the kata-containers
// runtime's katautils package.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the root logger. Zero value is a sane default:
// text formatter, info level, stderr.
type Options struct {
	Level  string // "trace", "debug", "info", "warn", "error"
	JSON   bool
	Output io.Writer // defaults to os.Stderr
}

// New builds a root *logrus.Logger per opts and returns an Entry
// carrying the given component name, mirroring SetLogger's
// component-tagged entry in katautils.
func New(component string, opts Options) (*logrus.Entry, error) {
	logger := logrus.New()

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	return logger.WithField("component", component), nil
}
