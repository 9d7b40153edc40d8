package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// defaultFlags is read from the LOGFLAGS environment variable. It is a
// variable rather than an init() result because other package-level
// variables depend on it.
var defaultFlags = getDefaultFlags()

// Flags to modify Backend's behavior.
const (
	// LogFlagLongFile adds the full path and line number of the callsite,
	// e.g. /a/b/c/main.go:123.
	LogFlagLongFile uint32 = 1 << iota

	// LogFlagShortFile adds the file name and line number of the callsite,
	// e.g. main.go:123. Takes precedence over LogFlagLongFile.
	LogFlagShortFile
)

func getDefaultFlags() (flags uint32) {
	for _, f := range strings.Split(os.Getenv("LOGFLAGS"), ",") {
		switch f {
		case "longfile":
			flags |= LogFlagLongFile
		case "shortfile":
			flags |= LogFlagShortFile
		}
	}
	return flags
}

const logEntriesBuffer = 64

const (
	defaultThresholdKB = 100 * 1000 // 100 MB
	defaultMaxRolls    = 8
)

// Backend is a logging backend. Subsystem loggers created from the backend
// send their entries over a single channel, and one goroutine writes them
// out to every registered writer whose level permits it.
type Backend struct {
	flag      uint32
	isRunning uint32
	isClosed  uint32
	writers   []logWriter
	writeChan chan logEntry
	done      sync.WaitGroup
	closeOnce sync.Once
}

// NewBackendWithFlags creates a Backend with the given flags instead of the
// ones taken from LOGFLAGS.
func NewBackendWithFlags(flags uint32) *Backend {
	return &Backend{flag: flags, writeChan: make(chan logEntry, logEntriesBuffer)}
}

// NewBackend creates a new logger backend.
func NewBackend() *Backend {
	return NewBackendWithFlags(defaultFlags)
}

type logWriter interface {
	io.WriteCloser
	LogLevel() Level
}

type logWriterWrap struct {
	io.WriteCloser
	logLevel Level
}

func (lw logWriterWrap) LogLevel() Level {
	return lw.logLevel
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// AddLogFile adds a rotated log file that receives every entry at logLevel
// or above. The file and its directory are created if missing.
func (b *Backend) AddLogFile(logFile string, logLevel Level) error {
	return b.AddLogFileWithCustomRotator(logFile, logLevel, defaultThresholdKB, defaultMaxRolls)
}

// AddLogWriter adds a writer that receives every entry at logLevel or above.
func (b *Backend) AddLogWriter(logWriter io.WriteCloser, logLevel Level) error {
	if b.IsRunning() {
		return errors.New("the logger is already running")
	}
	b.writers = append(b.writers, logWriterWrap{
		WriteCloser: logWriter,
		logLevel:    logLevel,
	})
	return nil
}

// AddLogFileWithCustomRotator is like AddLogFile but with explicit rotation
// settings.
func (b *Backend) AddLogFileWithCustomRotator(logFile string, logLevel Level, thresholdKB int64, maxRolls int) error {
	if b.IsRunning() {
		return errors.New("the logger is already running")
	}
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return errors.Wrapf(err, "failed to create log directory %s", logDir)
		}
	}
	r, err := rotator.New(logFile, thresholdKB, false, maxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator for %s", logFile)
	}
	b.writers = append(b.writers, logWriterWrap{
		WriteCloser: r,
		logLevel:    logLevel,
	})
	return nil
}

// Run launches the writer goroutine. It may only be called once.
func (b *Backend) Run() error {
	if !atomic.CompareAndSwapUint32(&b.isRunning, 0, 1) {
		return errors.New("the logger is already running")
	}
	b.done.Add(1)
	go func() {
		defer b.done.Done()
		defer func() {
			if err := recover(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Fatal error in logger.Backend goroutine: %+v\n", err)
				_, _ = fmt.Fprintf(os.Stderr, "Goroutine stacktrace: %s\n", debug.Stack())
			}
		}()
		b.runBlocking()
	}()
	return nil
}

func (b *Backend) runBlocking() {
	for entry := range b.writeChan {
		for _, writer := range b.writers {
			if entry.level >= writer.LogLevel() {
				_, _ = writer.Write(entry.log)
			}
		}
	}
}

// IsRunning returns true if Run has been called and Close hasn't.
func (b *Backend) IsRunning() bool {
	return atomic.LoadUint32(&b.isRunning) != 0 && atomic.LoadUint32(&b.isClosed) == 0
}

// Close drains pending entries and closes all writers.
func (b *Backend) Close() {
	b.closeOnce.Do(func() {
		atomic.StoreUint32(&b.isClosed, 1)
		close(b.writeChan)
		b.done.Wait()
		for _, writer := range b.writers {
			_ = writer.Close()
		}
	})
}

func (b *Backend) write(entry logEntry) {
	if !b.IsRunning() {
		if entry.level >= LevelError {
			_, _ = os.Stderr.Write(entry.log)
		}
		return
	}
	defer func() {
		// The channel may have been closed by a concurrent Close.
		_ = recover()
	}()
	b.writeChan <- entry
}

// Logger returns a new logger for the given subsystem tag. Loggers start at
// LevelOff.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{level: uint32(LevelOff), tag: subsystemTag, b: b}
}
