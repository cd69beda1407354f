package logger

import (
	"github.com/rizkirmdhn/douyindl/internal/common/config"
	"github.com/sirupsen/logrus"
)

func New(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	log.SetLevel(logrus.Level(cfg.App.LogLevel))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return log
}
