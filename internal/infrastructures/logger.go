package infrastructures

import (
	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// NewLogger applies the configured level to the global logger and returns it.
func NewLogger(cfg *AppConfig) *logrus.Logger {
	level, err := logrus.ParseLevel(cfg.LOG_LEVEL)
	if err != nil {
		logger.Warnf("unknown log level %q, falling back to info", cfg.LOG_LEVEL)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logrus.SetLevel(level)
	return logger
}
