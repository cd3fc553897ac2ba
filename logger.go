package axion

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger receives structured debug output from the client. Key-value pairs
// alternate keys and values, slog style.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger is a minimal console logger writing to stderr.
type SimpleLogger struct {
	l *log.Logger
}

// NewSimpleLogger returns a console logger suitable for development use.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{l: log.New(os.Stderr, "axion ", log.LstdFlags|log.Lmicroseconds)}
}

func (s *SimpleLogger) Debug(msg string, kv ...interface{}) { s.print("DEBUG", msg, kv) }
func (s *SimpleLogger) Info(msg string, kv ...interface{})  { s.print("INFO", msg, kv) }
func (s *SimpleLogger) Warn(msg string, kv ...interface{})  { s.print("WARN", msg, kv) }
func (s *SimpleLogger) Error(msg string, kv ...interface{}) { s.print("ERROR", msg, kv) }

func (s *SimpleLogger) print(level, msg string, kv []interface{}) {
	line := level + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		line += fmt.Sprintf(" %v", kv[len(kv)-1])
	}
	s.l.Print(line)
}

// DebugConfig selects which stages emit debug logs and how request ids are
// generated.
type DebugConfig struct {
	Enabled     bool
	LogRequests bool
	LogCache    bool
	LogRetries  bool
	LogQueue    bool
	LogDedup    bool

	// RequestIDGen produces ids for requests submitted without one.
	RequestIDGen func() string
}

// DefaultDebugConfig enables all stages and uses UUID request ids.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogRetries:   true,
		LogQueue:     true,
		LogDedup:     true,
		RequestIDGen: uuid.NewString,
	}
}

type debugFlag int

const (
	logRequests debugFlag = iota
	logCache
	logRetries
	logQueue
	logDedup
)

func (d *DebugConfig) allows(flag debugFlag) bool {
	if d == nil || !d.Enabled {
		return false
	}
	switch flag {
	case logRequests:
		return d.LogRequests
	case logCache:
		return d.LogCache
	case logRetries:
		return d.LogRetries
	case logQueue:
		return d.LogQueue
	case logDedup:
		return d.LogDedup
	default:
		return false
	}
}
