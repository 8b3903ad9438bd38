// Package logging provides structured JSON logging to stdout.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries structured context attached to a log entry.
type Fields map[string]interface{}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

// Logger writes one JSON object per line.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

func New() *Logger {
	return &Logger{out: os.Stdout, level: LevelInfo}
}

func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	return l
}

func (l *Logger) SetLevel(level Level) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	return l
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if len(fields) > 0 {
		merged := make(Fields)
		for _, f := range fields {
			for k, v := range f {
				merged[k] = v
			}
		}
		if len(merged) > 0 {
			e.Fields = merged
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		l.out.Write([]byte(e.Timestamp + " " + e.Level + " " + msg + "\n"))
		return
	}
	l.out.Write(append(data, '\n'))
}

// Default is the process-wide logger used by the package-level helpers.
var Default = New()

func SetDefaultLevel(level Level) { Default.SetLevel(level) }

func Debug(msg string, fields ...Fields) { Default.Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { Default.Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { Default.Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { Default.Error(msg, fields...) }
