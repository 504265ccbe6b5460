package app

import (
	log "github.com/sirupsen/logrus"
)

// SetupLogging applies LOG_LEVEL; unknown levels fall back to info.
func SetupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
