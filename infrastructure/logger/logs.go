package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

var (
	subsystemLoggers      = make(map[string]*Logger)
	subsystemLoggersMutex sync.Mutex
)

// RegisterSubSystem returns the logger for the given subsystem tag,
// creating it on first use.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	logger, exists := subsystemLoggers[subsystem]
	if !exists {
		logger = BackendLog.Logger(subsystem)
		subsystemLoggers[subsystem] = logger
	}
	return logger
}

// InitLog attaches log rotators for the main and error log files and
// starts the backend. It must be called before any logger output is
// expected to reach the files.
func InitLog(logFile, errLogFile string) {
	err := BackendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s\n", logFile, LevelTrace, err)
		os.Exit(1)
	}
	err = BackendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s\n", errLogFile, LevelWarn, err)
		os.Exit(1)
	}
	err = BackendLog.AddLogWriter(nopCloser{os.Stdout}, LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding stdout to the logger for level %s: %s\n", LevelInfo, err)
		os.Exit(1)
	}
	err = BackendLog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting the logger: %s\n", err)
		os.Exit(1)
	}
}

// InitLogStdout starts the backend writing to stdout only and sets all
// subsystems to logLevel. Used by tests.
func InitLogStdout(logLevel Level) {
	SetLogLevels(logLevel)
	if BackendLog.IsRunning() {
		return
	}
	err := BackendLog.AddLogWriter(nopCloser{os.Stdout}, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding stdout to the logger: %s\n", err)
		os.Exit(1)
	}
	err = BackendLog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting the logger: %s\n", err)
		os.Exit(1)
	}
}

// SetLogLevel sets the level of a single subsystem. Unknown subsystems are
// ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the level of every registered subsystem.
func SetLogLevels(logLevel Level) {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	for _, logger := range subsystemLoggers {
		logger.SetLevel(logLevel)
	}
}

// SupportedSubsystems returns a sorted list of the registered subsystem
// tags.
func SupportedSubsystems() []string {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsystem := range subsystemLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetLogLevels parses a log level string and applies it. The
// string is either a single level applied to every subsystem, or a
// comma separated list of subsystem=level pairs.
func ParseAndSetLogLevels(logLevel string) error {
	if !strings.Contains(logLevel, ",") && !strings.Contains(logLevel, "=") {
		level, ok := LevelFromString(logLevel)
		if !ok {
			return errors.Errorf("the specified log level [%s] is invalid -- "+
				"supported levels are %s", logLevel, SupportedLevels())
		}
		SetLogLevels(level)
		return nil
	}

	for _, pair := range strings.Split(logLevel, ",") {
		if !strings.Contains(pair, "=") {
			return errors.Errorf("the specified log level contains an invalid "+
				"subsystem/level pair [%s]", pair)
		}
		fields := strings.Split(pair, "=")
		subsystemID, levelString := fields[0], fields[1]

		if !isSupportedSubsystem(subsystemID) {
			return errors.Errorf("the specified subsystem [%s] is invalid -- "+
				"supported subsystems are %s", subsystemID, SupportedSubsystems())
		}
		if _, ok := LevelFromString(levelString); !ok {
			return errors.Errorf("the specified log level [%s] is invalid -- "+
				"supported levels are %s", levelString, SupportedLevels())
		}
		SetLogLevel(subsystemID, levelString)
	}
	return nil
}

func isSupportedSubsystem(subsystemID string) bool {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	_, ok := subsystemLoggers[subsystemID]
	return ok
}
