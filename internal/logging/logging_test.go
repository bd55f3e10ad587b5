package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "debug", value: "debug", expected: LevelDebug},
		{name: "info", value: "info", expected: LevelInfo},
		{name: "warn", value: "warn", expected: LevelWarn},
		{name: "warning alias", value: "warning", expected: LevelWarn},
		{name: "error", value: "error", expected: LevelError},
		{name: "case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "surrounding spaces", value: "  error ", expected: LevelError},
		{name: "empty falls back to info", value: "", expected: LevelInfo},
		{name: "garbage falls back to info", value: "verbose", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.value); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		logLevel string
		expected LogLevel
	}{
		{name: "DEBUG=true wins over LOG_LEVEL", debug: "true", logLevel: "error", expected: LevelDebug},
		{name: "DEBUG=1", debug: "1", expected: LevelDebug},
		{name: "DEBUG=false defers to LOG_LEVEL", debug: "false", logLevel: "warn", expected: LevelWarn},
		{name: "LOG_LEVEL only", logLevel: "error", expected: LevelError},
		{name: "nothing set", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEBUG", tt.debug)
			t.Setenv("LOG_LEVEL", tt.logLevel)

			if got := levelFromEnv(); got != tt.expected {
				t.Errorf("levelFromEnv() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLogrusLevelMapping(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected logrus.Level
	}{
		{LevelDebug, logrus.DebugLevel},
		{LevelInfo, logrus.InfoLevel},
		{LevelWarn, logrus.WarnLevel},
		{LevelError, logrus.ErrorLevel},
		{LogLevel(42), logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.logrusLevel(); got != tt.expected {
				t.Errorf("logrusLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOutputIsWrittenThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Error("ledger write failed: %s", "disk full")

	out := buf.String()
	if !strings.Contains(out, "ledger write failed: disk full") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "level=error") {
		t.Errorf("expected error level marker in output, got %q", out)
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	WithRequestID("abc-123").Error("fetch failed")

	if !strings.Contains(buf.String(), "request_id=abc-123") {
		t.Errorf("expected request_id field in output, got %q", buf.String())
	}
}

func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Debug doesn't panic", fn: func() { Debug("test message") }},
		{name: "Info doesn't panic", fn: func() { Info("test message") }},
		{name: "Warn doesn't panic", fn: func() { Warn("test message") }},
		{name: "Error doesn't panic", fn: func() { Error("test message") }},
		{name: "Info with args doesn't panic", fn: func() { Info("test %s %d", "message", 123) }},
		{name: "Printf doesn't panic", fn: func() { Printf("test %s", "message") }},
		{name: "Println doesn't panic", fn: func() { Println("test", "message", 123) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Function panicked: %v", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// useLevelFromEnv applies LOG_LEVEL/DEBUG as set by the test and restores the
// previous level afterwards.
func useLevelFromEnv(t *testing.T) {
	t.Helper()
	initLevel()
	old := currentLevel
	currentLevel = levelFromEnv()
	logger.SetLevel(currentLevel.logrusLevel())
	t.Cleanup(func() {
		currentLevel = old
		logger.SetLevel(old.logrusLevel())
	})
}

func TestPrintAlwaysWritesAboveLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("LOG_LEVEL", "error")
	useLevelFromEnv(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Warn("warn line")
	Info("info line")
	Println("2026-10-19 12:00:00 127.0.0.1 GET /health - 200")
	Printf("banner %s", "v1.0.0")
	Error("error line")

	out := buf.String()
	for _, dropped := range []string{"warn line", "info line"} {
		if strings.Contains(out, dropped) {
			t.Errorf("%q should be filtered at LOG_LEVEL=error, output %q", dropped, out)
		}
	}
	for _, kept := range []string{"GET /health - 200", "banner v1.0.0", "error line"} {
		if !strings.Contains(out, kept) {
			t.Errorf("%q missing at LOG_LEVEL=error, output %q", kept, out)
		}
	}
}
