package logger

import (
	"time"
)

// LogAndMeasureExecutionTime logs the start of functionName at debug level
// and returns a function that logs its end together with the elapsed time.
//
// Usage: defer LogAndMeasureExecutionTime(log, "AddBlock")()
func LogAndMeasureExecutionTime(log *Logger, functionName string) (onEnd func()) {
	start := time.Now()
	log.Debugf("%s start", functionName)
	return func() {
		log.Debugf("%s end. Took: %s", functionName, time.Since(start))
	}
}
