// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package logging provides the default logger and helpers to configure it
// from command line options.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// LevelOpt is the option key used to set the log level.
	LevelOpt = "level"

	// FormatOpt is the option key used to select the output format.
	FormatOpt = "format"

	// LogFormatText is the plain text log format.
	LogFormatText = "text"

	// LogFormatJSON is the JSON log format.
	LogFormatJSON = "json"

	// DefaultLogLevel is used unless overridden via LogOptions.
	DefaultLogLevel = logrus.InfoLevel
)

// DefaultLogger is the base logger from which all subsystem loggers are
// derived via WithField(logfields.LogSubsys, ...).
var DefaultLogger = initDefaultLogger()

func initDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(DefaultLogLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	return logger
}

// LogOptions maps log option keys to their configured values.
type LogOptions map[string]string

// GetLogLevel returns the configured log level, falling back to
// DefaultLogLevel when unset or unparseable.
func (o LogOptions) GetLogLevel() logrus.Level {
	levelOpt, ok := o[LevelOpt]
	if !ok {
		return DefaultLogLevel
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelOpt))
	if err != nil {
		return DefaultLogLevel
	}
	return level
}

// SetupLogging applies the given options to DefaultLogger.
func SetupLogging(opts LogOptions) error {
	DefaultLogger.SetLevel(opts.GetLogLevel())

	switch format := strings.ToLower(opts[FormatOpt]); format {
	case "", LogFormatText:
		DefaultLogger.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	case LogFormatJSON:
		DefaultLogger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	return nil
}
