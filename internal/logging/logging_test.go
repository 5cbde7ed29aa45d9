package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		expected LogLevel
	}{
		{
			name:     "Debug via LOG_LEVEL",
			envVar:   "LOG_LEVEL",
			envValue: "debug",
			expected: LevelDebug,
		},
		{
			name:     "Info via LOG_LEVEL",
			envVar:   "LOG_LEVEL",
			envValue: "info",
			expected: LevelInfo,
		},
		{
			name:     "Warn via LOG_LEVEL",
			envVar:   "LOG_LEVEL",
			envValue: "warn",
			expected: LevelWarn,
		},
		{
			name:     "Error via LOG_LEVEL",
			envVar:   "LOG_LEVEL",
			envValue: "error",
			expected: LevelError,
		},
		{
			name:     "Case insensitive",
			envVar:   "LOG_LEVEL",
			envValue: "DEBUG",
			expected: LevelDebug,
		},
		{
			name:     "Warning alias",
			envVar:   "LOG_LEVEL",
			envValue: "warning",
			expected: LevelWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset the sync.Once for each test
			// This is a limitation - in real code levelOnce can't be reset
			// But we can at least test the parseLevel logic indirectly
			os.Setenv(tt.envVar, tt.envValue)
			defer os.Unsetenv(tt.envVar)

			// Note: Due to sync.Once, we can't truly test GetLevel() multiple times
			// in the same process. This test documents the expected behavior.
			if tt.expected < LevelDebug || tt.expected > LevelError {
				t.Errorf("Invalid expected level: %v", tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	// Verify log level ordering
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}

	// Verify level values for comparison operations
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestIsDebugEnabled(t *testing.T) {
	// Test that IsDebugEnabled returns a boolean
	result := IsDebugEnabled()
	if result != true && result != false {
		t.Error("IsDebugEnabled should return a boolean value")
	}
}

// TestLoggingFunctions tests that logging functions don't panic
func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{
			name: "Debug doesn't panic",
			fn:   func() { Debug("test message") },
		},
		{
			name: "Info doesn't panic",
			fn:   func() { Info("test message") },
		},
		{
			name: "Warn doesn't panic",
			fn:   func() { Warn("test message") },
		},
		{
			name: "Error doesn't panic",
			fn:   func() { Error("test message") },
		},
		{
			name: "Debug with args doesn't panic",
			fn:   func() { Debug("test %s %d", "message", 123) },
		},
		{
			name: "Info with args doesn't panic",
			fn:   func() { Info("test %s %d", "message", 123) },
		},
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

func TestPrintfAndPrintln(t *testing.T) {
	// Test that Printf and Println don't panic
	t.Run("Printf doesn't panic", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Printf panicked: %v", r)
			}
		}()
		Printf("test message")
		Printf("test %s %d", "message", 123)
	})

	t.Run("Println doesn't panic", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Println panicked: %v", r)
			}
		}()
		Println("test message")
		Println("test", "message", 123)
	})
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
			got := tt.level.String()
			if got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPassLoggerPrefixesAsset(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// Error-level output is emitted at every configured level, so the
	// assertion holds regardless of what LOG_LEVEL latched earlier.
	Pass("img42").Error("encode failed after %d attempts", 3)

	got := buf.String()
	if !strings.Contains(got, "[asset img42] encode failed after 3 attempts") {
		t.Errorf("pass log = %q, want asset prefix and formatted message", got)
	}
	if !strings.Contains(got, "[ERROR]") {
		t.Errorf("pass log = %q, want level tag", got)
	}
}
