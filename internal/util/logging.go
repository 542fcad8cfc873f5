package util

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

func LogError(message string, err error) error {
	log.Errorf("%s: %v", message, err)
	return fmt.Errorf("%s: %w", message, err)
}

// Component : логгер с полем component
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
