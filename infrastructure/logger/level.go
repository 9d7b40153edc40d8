package logger

import "strings"

// Level is the level at which a logger is configured. Messages below the
// configured level are dropped.
type Level uint32

// Level constants.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// levelNames holds, per level, the tag printed in log lines followed by
// the full name accepted in configuration. Both are accepted when parsing.
var levelNames = [...][2]string{
	LevelTrace:    {"TRC", "trace"},
	LevelDebug:    {"DBG", "debug"},
	LevelInfo:     {"INF", "info"},
	LevelWarn:     {"WRN", "warn"},
	LevelError:    {"ERR", "error"},
	LevelCritical: {"CRT", "critical"},
	LevelOff:      {"OFF", "off"},
}

// LevelFromString parses s, either a level name or its tag, ignoring case.
// Unknown input yields LevelInfo and false.
func LevelFromString(s string) (Level, bool) {
	for level, names := range levelNames {
		if strings.EqualFold(s, names[0]) || strings.EqualFold(s, names[1]) {
			return Level(level), true
		}
	}
	return LevelInfo, false
}

// SupportedLevels returns the level names accepted in configuration, from
// the most to the least verbose.
func SupportedLevels() []string {
	supported := make([]string, len(levelNames))
	for level, names := range levelNames {
		supported[level] = names[1]
	}
	return supported
}

// String returns the tag printed in log lines. Anything at or above
// LevelOff is "OFF".
func (l Level) String() string {
	if l >= LevelOff {
		return levelNames[LevelOff][0]
	}
	return levelNames[l][0]
}
