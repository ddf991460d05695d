package mqttiot

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug is the debug log level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the info log level.
	LogLevelInfo
	// LogLevelWarn is the warn log level.
	LogLevelWarn
	// LogLevelError is the error log level.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFields represents key-value pairs for structured logging.
type LogFields map[string]any

// Logger defines the interface for logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, fields LogFields)

	// Info logs an info message.
	Info(msg string, fields LogFields)

	// Warn logs a warning message.
	Warn(msg string, fields LogFields)

	// Error logs an error message.
	Error(msg string, fields LogFields)

	// WithFields returns a new logger with the given fields added.
	WithFields(fields LogFields) Logger

	// Level returns the current log level.
	Level() LogLevel

	// SetLevel sets the log level.
	SetLevel(level LogLevel)
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct {
	level LogLevel
}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: LogLevelNone}
}

func (n *NoOpLogger) Debug(_ string, _ LogFields) {}
func (n *NoOpLogger) Info(_ string, _ LogFields)  {}
func (n *NoOpLogger) Warn(_ string, _ LogFields)  {}
func (n *NoOpLogger) Error(_ string, _ LogFields) {}

func (n *NoOpLogger) WithFields(_ LogFields) Logger { return n }
func (n *NoOpLogger) Level() LogLevel               { return n.level }
func (n *NoOpLogger) SetLevel(level LogLevel)       { n.level = level }

// StdLogger is a simple logger using the standard library log package.
type StdLogger struct {
	logger *log.Logger
	level  LogLevel
	fields LogFields
}

// NewStdLogger creates a new standard library based logger.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	return &StdLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
		fields: make(LogFields),
	}
}

func (s *StdLogger) Debug(msg string, fields LogFields) {
	if s.level <= LogLevelDebug {
		s.log("DEBUG", msg, fields)
	}
}

func (s *StdLogger) Info(msg string, fields LogFields) {
	if s.level <= LogLevelInfo {
		s.log("INFO", msg, fields)
	}
}

func (s *StdLogger) Warn(msg string, fields LogFields) {
	if s.level <= LogLevelWarn {
		s.log("WARN", msg, fields)
	}
}

func (s *StdLogger) Error(msg string, fields LogFields) {
	if s.level <= LogLevelError {
		s.log("ERROR", msg, fields)
	}
}

func (s *StdLogger) WithFields(fields LogFields) Logger {
	newFields := make(LogFields, len(s.fields)+len(fields))
	for k, v := range s.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &StdLogger{logger: s.logger, level: s.level, fields: newFields}
}

func (s *StdLogger) Level() LogLevel         { return s.level }
func (s *StdLogger) SetLevel(level LogLevel) { s.level = level }

func (s *StdLogger) log(level, msg string, fields LogFields) {
	allFields := make(LogFields, len(s.fields)+len(fields))
	for k, v := range s.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}

	if len(allFields) == 0 {
		s.logger.Printf("[%s] %s", level, msg)
		return
	}

	s.logger.Printf("[%s] %s %v", level, msg, allFields)
}

// slogLogger is the default Logger, backed by log/slog. Runtime uses this
// unless the caller supplies a Logger of its own via WithLogger.
type slogLogger struct {
	handler slog.Handler
	level   LogLevel
	fields  LogFields
}

// NewSlogLogger wraps an existing *slog.Logger's handler.
func NewSlogLogger(base *slog.Logger, level LogLevel) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &slogLogger{handler: base.Handler(), level: level, fields: make(LogFields)}
}

// NewDefaultLogger returns the Logger a Runtime uses when none is
// supplied: a slog.TextHandler over os.Stderr, filtered at level.
func NewDefaultLogger(level LogLevel) Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.slogLevel()})
	return &slogLogger{handler: handler, level: level, fields: make(LogFields)}
}

func (s *slogLogger) record(level slog.Level, msg string, fields LogFields) {
	if !s.handler.Enabled(context.Background(), level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	for k, v := range s.fields {
		r.AddAttrs(slog.Any(k, v))
	}
	for k, v := range fields {
		r.AddAttrs(slog.Any(k, v))
	}
	_ = s.handler.Handle(context.Background(), r)
}

func (s *slogLogger) Debug(msg string, fields LogFields) {
	if s.level <= LogLevelDebug {
		s.record(slog.LevelDebug, msg, fields)
	}
}

func (s *slogLogger) Info(msg string, fields LogFields) {
	if s.level <= LogLevelInfo {
		s.record(slog.LevelInfo, msg, fields)
	}
}

func (s *slogLogger) Warn(msg string, fields LogFields) {
	if s.level <= LogLevelWarn {
		s.record(slog.LevelWarn, msg, fields)
	}
}

func (s *slogLogger) Error(msg string, fields LogFields) {
	if s.level <= LogLevelError {
		s.record(slog.LevelError, msg, fields)
	}
}

func (s *slogLogger) WithFields(fields LogFields) Logger {
	merged := make(LogFields, len(s.fields)+len(fields))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &slogLogger{handler: s.handler, level: s.level, fields: merged}
}

func (s *slogLogger) Level() LogLevel         { return s.level }
func (s *slogLogger) SetLevel(level LogLevel) { s.level = level }

// consoleLogger renders single-line, level-colored records to a writer
// using github.com/fatih/color, the way an interactive CLI session wants
// its client logs to look. It is opt-in: NewConsoleLogger, not the
// default Runtime logger.
type consoleLogger struct {
	w      io.Writer
	level  LogLevel
	fields LogFields
}

// NewConsoleLogger returns a Logger that writes colorized single-line
// records to w.
func NewConsoleLogger(w io.Writer, level LogLevel) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &consoleLogger{w: w, level: level, fields: make(LogFields)}
}

func levelColor(level string) string {
	switch level {
	case "DEBUG":
		return color.MagentaString(level)
	case "INFO":
		return color.BlueString(level)
	case "WARN":
		return color.YellowString(level)
	case "ERROR":
		return color.RedString(level)
	default:
		return level
	}
}

func (c *consoleLogger) write(level, msg string, fields LogFields) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(levelColor(level))
	b.WriteString("] ")
	b.WriteString(msg)

	for k, v := range c.fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteString("\n")
	_, _ = io.WriteString(c.w, b.String())
}

func (c *consoleLogger) Debug(msg string, fields LogFields) {
	if c.level <= LogLevelDebug {
		c.write("DEBUG", msg, fields)
	}
}

func (c *consoleLogger) Info(msg string, fields LogFields) {
	if c.level <= LogLevelInfo {
		c.write("INFO", msg, fields)
	}
}

func (c *consoleLogger) Warn(msg string, fields LogFields) {
	if c.level <= LogLevelWarn {
		c.write("WARN", msg, fields)
	}
}

func (c *consoleLogger) Error(msg string, fields LogFields) {
	if c.level <= LogLevelError {
		c.write("ERROR", msg, fields)
	}
}

func (c *consoleLogger) WithFields(fields LogFields) Logger {
	merged := make(LogFields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &consoleLogger{w: c.w, level: c.level, fields: merged}
}

func (c *consoleLogger) Level() LogLevel         { return c.level }
func (c *consoleLogger) SetLevel(level LogLevel) { c.level = level }

// Standard field names for MQTT logging.
const (
	LogFieldClientID    = "client_id"
	LogFieldTopic       = "topic"
	LogFieldPacketID    = "packet_id"
	LogFieldPacketType  = "packet_type"
	LogFieldQoS         = "qos"
	LogFieldReturnCode  = "return_code"
	LogFieldError       = "error"
	LogFieldRemoteAddr  = "remote_addr"
	LogFieldDuration    = "duration"
	LogFieldBytes       = "bytes"
)
