package core

import (
	"fmt"
	"log"
)

// Logger is the structured logging hook of the library. Implementations can
// bridge to any logging backend; the executor only ever calls it outside the
// per-node hot path except for failure reporting.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log message.
type Field struct {
	Key   string
	Value any
}

// F creates a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger writes through the standard log package.
type DefaultLogger struct{}

// NewDefaultLogger creates a DefaultLogger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *DefaultLogger) log(level, msg string, fields []Field) {
	if len(fields) == 0 {
		log.Printf("[%s] %s", level, msg)
		return
	}
	out := msg
	for _, f := range fields {
		out += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	log.Printf("[%s] %s", level, out)
}

// NopLogger discards all messages. It is the executor's default: a library
// must stay silent unless the caller opts in.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
