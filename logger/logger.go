// Package logger holds the process-wide logr.Logger used by the engine.io
// and socket.io layers.
package logger

import (
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	mu sync.RWMutex
	l  = newDefault()
)

func newDefault() logr.Logger {
	cfg := settingsFromEnv()
	if !cfg.enabled {
		return logr.Discard()
	}
	stdr.SetVerbosity(cfg.verbosity)

	return stdr.New(log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))
}

// ReplaceLogger swaps the logger returned by later GetLogger calls.
func ReplaceLogger(logger logr.Logger) {
	mu.Lock()
	defer mu.Unlock()

	l = logger
}

// GetLogger returns a named child of the process logger.
func GetLogger(name string) logr.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return l.WithName(name)
}
