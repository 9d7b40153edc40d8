package logger

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type logEntry struct {
	log   []byte
	level Level
}

// Logger is a subsystem logger. All methods are safe for concurrent use.
type Logger struct {
	level uint32
	tag   string
	b     *Backend
}

// Tracef formats the message using the given format specifier and writes it
// at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.Writef(LevelTrace, format, args...)
}

// Debugf writes a formatted message at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Writef(LevelDebug, format, args...)
}

// Infof writes a formatted message at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Writef(LevelInfo, format, args...)
}

// Warnf writes a formatted message at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Writef(LevelWarn, format, args...)
}

// Errorf writes a formatted message at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Writef(LevelError, format, args...)
}

// Criticalf writes a formatted message at LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.Writef(LevelCritical, format, args...)
}

// Trace writes its arguments at LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.Write(LevelTrace, args...)
}

// Debug writes its arguments at LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.Write(LevelDebug, args...)
}

// Info writes its arguments at LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.Write(LevelInfo, args...)
}

// Warn writes its arguments at LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.Write(LevelWarn, args...)
}

// Error writes its arguments at LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.Write(LevelError, args...)
}

// Critical writes its arguments at LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.Write(LevelCritical, args...)
}

// Write formats the arguments with fmt.Sprint semantics and writes them at
// logLevel, if the logger's level permits.
func (l *Logger) Write(logLevel Level, args ...interface{}) {
	if l.Level() > logLevel {
		return
	}
	l.print(logLevel, fmt.Sprint(args...))
}

// Writef formats the arguments with fmt.Sprintf semantics and writes them at
// logLevel, if the logger's level permits.
func (l *Logger) Writef(logLevel Level, format string, args ...interface{}) {
	if l.Level() > logLevel {
		return
	}
	l.print(logLevel, fmt.Sprintf(format, args...))
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.level))
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32(&l.level, uint32(level))
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.b
}

func (l *Logger) print(logLevel Level, message string) {
	now := time.Now()
	var file string
	var line int
	if l.b.flag&(LogFlagShortFile|LogFlagLongFile) != 0 {
		file, line = callsite(l.b.flag)
	}

	buf := &bytes.Buffer{}
	formatHeader(buf, now, logLevel.String(), l.tag, file, line)
	buf.WriteString(message)
	if !strings.HasSuffix(message, "\n") {
		buf.WriteByte('\n')
	}
	l.b.write(logEntry{log: buf.Bytes(), level: logLevel})
}

// formatHeader writes "2006-01-02 15:04:05.000 [LVL] TAG: " and, when
// known, the callsite before the tag separator.
func formatHeader(buf *bytes.Buffer, t time.Time, lvl, tag string, file string, line int) {
	buf.WriteString(t.Format("2006-01-02 15:04:05.000"))
	buf.WriteString(" [")
	buf.WriteString(lvl)
	buf.WriteString("] ")
	buf.WriteString(tag)
	if file != "" {
		buf.WriteByte(' ')
		buf.WriteString(file)
		buf.WriteByte(':')
		fmt.Fprintf(buf, "%d", line)
	}
	buf.WriteString(": ")
}

// calldepth is the call depth of the callsite function relative to the
// caller of the subsystem logger.
const calldepth = 4

func callsite(flag uint32) (string, int) {
	_, file, line, ok := runtime.Caller(calldepth)
	if !ok {
		return "???", 0
	}
	if flag&LogFlagShortFile != 0 {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		file = short
	}
	return file, line
}
