// Package logger builds the application logger used by the CLI
// commands.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logrus logger writing to stderr. The level is
// taken from CRTC_LOG_LEVEL when set, defaulting to info.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	if raw := os.Getenv("CRTC_LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			log.Warnf("unknown log level %q, using info", raw)
		} else {
			log.SetLevel(level)
		}
	}
	return log
}
