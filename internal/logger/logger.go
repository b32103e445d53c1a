package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// LogContext identifies the unit of work a message belongs to. Every skip or
// failure is logged with the full cell tuple so the artifact can be located.
type LogContext struct {
	RunID     string `json:"run_id,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Hardware  string `json:"hardware,omitempty"`
	Subset    string `json:"subset,omitempty"`
	Machine   string `json:"machine,omitempty"`
	Model     string `json:"model,omitempty"`
	Job       string `json:"job,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Logger provides structured logging with proper output streams
type Logger struct {
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	fatal *log.Logger

	stdout   io.Writer
	stderr   io.Writer
	jsonMode bool
	minLevel LogLevel
	mu       sync.Mutex
	exit     func(int)
}

// JSONLogEntry represents a structured log entry
type JSONLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   *LogContext            `json:"context,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Options configures a Logger. Nil writers fall back to os.Stdout / os.Stderr.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	JSON     bool
	MinLevel LogLevel
}

// NewLogger creates a logger configured from the environment.
// LOG_FORMAT=json (or a Cloud Foundry VCAP_APPLICATION) switches to JSON lines.
func NewLogger() *Logger {
	jsonMode := strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") || os.Getenv("VCAP_APPLICATION") != ""
	return New(Options{
		JSON:     jsonMode,
		MinLevel: ParseLevel(os.Getenv("LOG_LEVEL")),
	})
}

// New creates a logger from explicit options.
func New(opts Options) *Logger {
	// Normal logs (DEBUG, INFO, WARN) go to stdout, ERROR and FATAL to stderr
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// timestamp first so the level prefix sits right before the message
	flags := log.LstdFlags | log.Lmsgprefix
	return &Logger{
		debug:    log.New(stdout, "[DEBUG] ", flags),
		info:     log.New(stdout, "[INFO]  ", flags),
		warn:     log.New(stdout, "[WARN]  ", flags),
		error:    log.New(stderr, "[ERROR] ", flags),
		fatal:    log.New(stderr, "[FATAL] ", flags),
		stdout:   stdout,
		stderr:   stderr,
		jsonMode: opts.JSON,
		minLevel: opts.MinLevel,
		exit:     os.Exit,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(Options{Stdout: io.Discard, Stderr: io.Discard})
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.emit(DEBUG, nil, nil, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.emit(INFO, nil, nil, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.emit(WARN, nil, nil, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.emit(ERROR, nil, nil, format, v...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.emit(FATAL, nil, nil, format, v...)
	l.exit(1)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.emit(DEBUG, ctx, nil, format, v...)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.emit(INFO, ctx, nil, format, v...)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.emit(WARN, ctx, nil, format, v...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.emit(ERROR, ctx, nil, format, v...)
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.emit(DEBUG, nil, fields, format, v...)
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.emit(INFO, nil, fields, format, v...)
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.emit(WARN, nil, fields, format, v...)
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.emit(ERROR, nil, fields, format, v...)
}

func (l *Logger) emit(level LogLevel, ctx *LogContext, fields map[string]interface{}, format string, v ...interface{}) {
	if level < l.minLevel {
		return
	}
	if l.jsonMode {
		l.logJSON(level, format, ctx, fields, v...)
		return
	}

	message := format
	if len(v) > 0 {
		message = fmt.Sprintf(format, v...)
	}
	line := formatContext(ctx) + message + formatFields(fields)

	switch level {
	case DEBUG:
		l.debug.Print(line)
	case INFO:
		l.info.Print(line)
	case WARN:
		l.warn.Print(line)
	case ERROR:
		l.error.Print(line)
	default:
		l.fatal.Print(line)
	}
}

// logJSON logs a structured JSON line
func (l *Logger) logJSON(level LogLevel, format string, ctx *LogContext, fields map[string]interface{}, v ...interface{}) {
	message := format
	if len(v) > 0 {
		message = fmt.Sprintf(format, v...)
	}

	entry := JSONLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Context:   ctx,
		Fields:    fields,
	}

	output := l.stdout
	if level >= ERROR {
		output = l.stderr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	encoder := json.NewEncoder(output)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(entry)
}

// formatContext formats context for human-readable logs
func formatContext(ctx *LogContext) string {
	if ctx == nil {
		return ""
	}

	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("[%s:%s]", label, value))
		}
	}
	add("Run", ctx.RunID)
	add("Backend", ctx.Backend)
	add("Hardware", ctx.Hardware)
	add("Subset", ctx.Subset)
	add("Machine", ctx.Machine)
	add("Model", ctx.Model)
	add("Job", ctx.Job)
	add("Op", ctx.Operation)

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "") + " "
}

// formatFields formats structured fields for human-readable logs, sorted by key
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

// WithContext returns a context logger for chaining
func (l *Logger) WithContext(ctx *LogContext) *ContextLogger {
	return &ContextLogger{
		logger: l,
		ctx:    ctx,
	}
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *Logger
	ctx    *LogContext
}

// Context returns a copy of the attached context.
func (cl *ContextLogger) Context() LogContext {
	if cl.ctx == nil {
		return LogContext{}
	}
	return *cl.ctx
}

// Debug logs a debug message with the context
func (cl *ContextLogger) Debug(format string, v ...interface{}) {
	cl.logger.DebugWithContext(cl.ctx, format, v...)
}

// Info logs an info message with the context
func (cl *ContextLogger) Info(format string, v ...interface{}) {
	cl.logger.InfoWithContext(cl.ctx, format, v...)
}

// Warn logs a warning message with the context
func (cl *ContextLogger) Warn(format string, v ...interface{}) {
	cl.logger.WarnWithContext(cl.ctx, format, v...)
}

// Error logs an error message with the context
func (cl *ContextLogger) Error(format string, v ...interface{}) {
	cl.logger.ErrorWithContext(cl.ctx, format, v...)
}

// InfoWithFields logs an info message with context and fields
func (cl *ContextLogger) InfoWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	cl.logger.emit(INFO, cl.ctx, fields, format, v...)
}

// ErrorWithFields logs an error message with context and fields
func (cl *ContextLogger) ErrorWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	cl.logger.emit(ERROR, cl.ctx, fields, format, v...)
}
