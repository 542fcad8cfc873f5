package config

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetupLogger : настраивает глобальный logrus по секции log
func SetupLogger(cfg LogConfig) {
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
		if cfg.Level != "" {
			log.Warnf("неизвестный уровень логирования %q, используется info", cfg.Level)
		}
	}
	log.SetLevel(level)
}
