package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// JSONLogEntry defines a log entry
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

// String renders an entry as a single JSON line
func (e JSONLogEntry) String() string {
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	out, err := json.Marshal(e)
	if err != nil {
		log.Printf("json.Marshal: %v", err)
	}
	return string(out)
}

type jsonLogger struct {
	metadata  map[string]interface{}
	component string
	sink      Sink
	logLevel  LogLevel
	ts        *time.Time // for unit testing
}

var _ Logger = (*jsonLogger)(nil)

var severities = map[LogLevel]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

func (c *jsonLogger) clone() *jsonLogger {
	return &jsonLogger{
		metadata:  cloneMetadata(c.metadata, nil),
		component: c.component,
		sink:      c.sink,
		logLevel:  c.logLevel,
		ts:        c.ts,
	}
}

// WithPrefix will return a new logger with prefix appended to the component
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	prefix = strings.Trim(prefix, "[]")
	switch {
	case l.component == "":
		l.component = prefix
	case !strings.Contains(l.component, prefix):
		l.component = l.component + ", " + prefix
	}
	return l
}

func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = cloneMetadata(c.metadata, metadata)
	if comp, ok := l.metadata["component"].(string); ok {
		l.component = comp
		delete(l.metadata, "component")
	}
	return l
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *jsonLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < c.logLevel {
		return
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Severity:  severities[level],
		Message:   ansiColorStripper.ReplaceAllString(text, ""),
		Metadata:  c.metadata,
		Component: c.component,
		Timestamp: time.Now(),
	}
	if c.ts != nil {
		entry.Timestamp = *c.ts
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = nil
	}
	if c.sink == nil {
		log.Println(entry)
		return
	}
	if _, err := c.sink.Write([]byte(entry.String() + "\n")); err != nil {
		log.Printf("sink.Write: %v", err)
	}
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, msg, args...) }
func (c *jsonLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, msg, args...) }
func (c *jsonLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, msg, args...) }
func (c *jsonLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, msg, args...) }
func (c *jsonLogger) Error(msg string, args ...interface{}) { c.log(LevelError, msg, args...) }

// NewJSONLogger returns a new Logger instance which can be used for structured logging
func NewJSONLogger(levels ...LogLevel) Logger {
	if len(levels) > 0 {
		return &jsonLogger{logLevel: levels[0]}
	}
	return &jsonLogger{logLevel: GetLevelFromEnv()}
}

// NewJSONLoggerWithSink returns a new Logger instance writing one JSON document per line to sink
func NewJSONLoggerWithSink(sink Sink, level LogLevel) Logger {
	return &jsonLogger{sink: sink, logLevel: level}
}
