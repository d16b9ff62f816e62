// Package logging provides structured, context-aware logging used by every
// background worker and HTTP request in the engine.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging contract used across the codebase.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithComponent(component string) Logger
}

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses a level name, defaulting to Info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
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

type contextKey string

const traceIDKey contextKey = "zerorag_trace_id"

// WithTraceID attaches a trace ID to a context, generating one if empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from a context, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type structuredLogger struct {
	level     Level
	component string
	json      bool
}

// New creates a logger at the given level, JSON-encoded by default.
func New(level Level) Logger {
	return &structuredLogger{level: level, json: envBool("ZERORAG_LOG_JSON", true)}
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func (l *structuredLogger) WithComponent(component string) Logger {
	return &structuredLogger{level: l.level, component: component, json: l.json}
}

func fieldMap(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if i+1 < len(fields) {
			m[key] = fields[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}

func (l *structuredLogger) log(level Level, levelName, traceID, msg string, fields []interface{}) {
	if level < l.level {
		return
	}
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     levelName,
		Component: l.component,
		TraceID:   traceID,
		Message:   msg,
		Fields:    fieldMap(fields),
	}
	if l.json {
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: marshal failed: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	var sb strings.Builder
	sb.WriteString(e.Timestamp)
	sb.WriteString(" [" + e.Level + "]")
	if e.Component != "" {
		sb.WriteString(" " + e.Component)
	}
	if e.TraceID != "" {
		sb.WriteString(" trace=" + e.TraceID)
	}
	sb.WriteString(" " + e.Message)
	for k, v := range e.Fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	fmt.Println(sb.String())
}

func (l *structuredLogger) Debug(msg string, fields ...interface{}) { l.log(LevelDebug, "DEBUG", "", msg, fields) }
func (l *structuredLogger) Info(msg string, fields ...interface{})  { l.log(LevelInfo, "INFO", "", msg, fields) }
func (l *structuredLogger) Warn(msg string, fields ...interface{})  { l.log(LevelWarn, "WARN", "", msg, fields) }
func (l *structuredLogger) Error(msg string, fields ...interface{}) { l.log(LevelError, "ERROR", "", msg, fields) }

func (l *structuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelDebug, "DEBUG", TraceID(ctx), msg, fields)
}
func (l *structuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelInfo, "INFO", TraceID(ctx), msg, fields)
}
func (l *structuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelWarn, "WARN", TraceID(ctx), msg, fields)
}
func (l *structuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelError, "ERROR", TraceID(ctx), msg, fields)
}

var defaultLogger = New(LevelInfo)

// Default returns the process-wide default logger, for bootstrapping code
// that runs before an App is composed.
func Default() Logger { return defaultLogger }

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) { defaultLogger = l }
