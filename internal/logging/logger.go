package logging

// Structured logging for plcmock

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel maps a level name to a LogLevel. Unknown names map to info.
func ParseLevel(name string) LogLevel {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "info", "":
		return LogLevelInfo
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging with optional file output and an
// optional JSON line format.
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	format   string // "text" or "json"
	logEvery int    // sample 1-in-N frame log lines
	frameSeq uint64
	file     *os.File
	fileLog  *log.Logger
	stdout   *log.Logger
	stderr   *log.Logger
}

// NewLogger creates a new text logger.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text", 1)
}

// NewLoggerWithOptions creates a logger with an explicit format and
// frame-log sampling rate. Empty format defaults to "text", logEvery <= 0
// defaults to 1 (log every frame).
func NewLoggerWithOptions(level LogLevel, logFile, format string, logEvery int) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if logEvery <= 0 {
		logEvery = 1
	}

	l := &Logger{
		level:    level,
		format:   format,
		logEvery: logEvery,
		stdout:   log.New(os.Stdout, "", 0),
		stderr:   log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.write("ERROR", fmt.Sprintf(format, v...), true)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.write("INFO", fmt.Sprintf(format, v...), false)
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.write("VERBOSE", fmt.Sprintf(format, v...), false)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.write("DEBUG", fmt.Sprintf(format, v...), false)
	}
}

// write formats and emits a message to the configured outputs.
func (l *Logger) write(level, msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := level + ": " + msg
	if l.format == "json" {
		encoded, err := json.Marshal(map[string]string{
			"time":  time.Now().Format(time.RFC3339),
			"level": level,
			"msg":   msg,
		})
		if err == nil {
			line = string(encoded)
		}
	}

	// Always write to the log file if available
	if l.fileLog != nil {
		l.fileLog.Println(line)
	}

	// Errors go to stderr; everything else goes to stdout only at
	// verbose/debug so the server console stays quiet by default.
	if isError {
		l.stderr.Println(line)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(line)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogFrame logs one dispatched frame, honoring the 1-in-N sampling rate.
func (l *Logger) LogFrame(protocol, command, remote string, requestLen, replyLen int) {
	l.mu.Lock()
	l.frameSeq++
	sampled := l.frameSeq%uint64(l.logEvery) == 0
	l.mu.Unlock()

	if !sampled {
		return
	}
	l.Verbose("%s %s from %s (request: %d bytes, reply: %d bytes)",
		protocol, command, remote, requestLen, replyLen)
}

// LogStartup logs emulator startup information.
func (l *Logger) LogStartup(name, protocol, ip string, port int, configPath string) {
	l.Info("Starting %s", name)
	l.Verbose("  Protocol: %s", protocol)
	l.Verbose("  Listen: %s:%d", ip, port)
	l.Verbose("  Config: %s", configPath)
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.level >= LogLevelDebug {
		hexStr := fmt.Sprintf("%x", data)
		formatted := ""
		for i := 0; i < len(hexStr); i += 2 {
			if i > 0 {
				formatted += " "
			}
			if i+2 <= len(hexStr) {
				formatted += hexStr[i : i+2]
			} else {
				formatted += hexStr[i:]
			}
		}
		l.Debug("%s: %s", label, formatted)
	}
}
