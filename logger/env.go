package logger

import (
	"os"
	"strconv"
)

// settings controls the default logger. It is read from LOG_ENABLE,
// LOG_LEVEL and DEBUG.
type settings struct {
	enabled   bool
	verbosity int
}

func settingsFromEnv() settings {
	s := settings{enabled: true}

	if v, err := strconv.ParseBool(os.Getenv("LOG_ENABLE")); err == nil {
		s.enabled = v
	}
	if v, err := strconv.Atoi(os.Getenv("LOG_LEVEL")); err == nil && v >= 0 {
		s.verbosity = v
	}
	// DEBUG raises the level to at least 1
	if v, _ := strconv.ParseBool(os.Getenv("DEBUG")); v && s.verbosity < 1 {
		s.verbosity = 1
	}
	return s
}
