package logging

import (
	"github.com/sirupsen/logrus"
)

type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// NewLogger builds the process-wide logger. Unknown formats fall back to text
// so a bad LOG_FORMAT never prevents startup.
func NewLogger(format LogFormat) *logrus.Logger {
	logger := logrus.New()
	switch format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
