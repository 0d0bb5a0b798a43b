// Package logger gates the upload service's debug traces (request lines,
// sweeper activity) behind a process-wide switch that follows the `log.level`
// config key. Operational messages go straight through the stdlib log.
package logger

import (
	"log"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetLevel enables debug output for level "debug" (case-insensitive);
// anything else silences it.
func SetLevel(level string) {
	debugEnabled.Store(strings.EqualFold(strings.TrimSpace(level), "debug"))
}

func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

func Debugf(format string, v ...any) {
	if !debugEnabled.Load() {
		return
	}

	log.Printf("[DEBUG] "+format, v...)
}
