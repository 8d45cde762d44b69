// Package logger wraps logrus with the process-wide structured logger.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance.
var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stderr)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel sets the minimum level. Unknown or empty values select info.
func SetLevel(level string) {
	switch level {
	case "debug":
		Logger.SetLevel(logrus.DebugLevel)
	case "warn":
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.InfoLevel)
	}
}

// WithFields creates a new entry with the given fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field.
func WithField(key string, value any) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field.
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

