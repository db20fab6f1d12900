// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning", "warning", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"fatal", "fatal", zerolog.FatalLevel},
		{"panic", "panic", zerolog.PanicLevel},
		{"invalid defaults to info", "invalid", zerolog.InfoLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"uppercase", "DEBUG", zerolog.DebugLevel},
		{"mixed case", "WaRn", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if level := parseLogLevel(tt.level); level != tt.expected {
				t.Errorf("parseLogLevel(%s) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	Initialize("info")

	logger := Get()
	if logger == nil {
		t.Error("Get() returned nil logger")
	}

	logger2 := Get()
	if logger2 == nil {
		t.Error("Second Get() returned nil logger")
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	Initialize("debug")
	SetOutput(&buf)

	tests := []struct {
		name    string
		logFunc func() *zerolog.Event
		message string
	}{
		{"debug", Debug, "debug message"},
		{"info", Info, "info message"},
		{"warn", Warn, "warn message"},
		{"error", Error, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			event := tt.logFunc()
			if event == nil {
				t.Errorf("%s() returned nil event", tt.name)
				return
			}

			event.Msg(tt.message)

			output := buf.String()
			if output == "" {
				t.Errorf("%s() produced no output", tt.name)
			}
			if !strings.Contains(output, tt.message) {
				t.Errorf("%s() output should contain message %q, got %q", tt.name, tt.message, output)
			}
		})
	}
}

func TestWith(t *testing.T) {
	Initialize("info")

	logger := With().Str("device_id", "ABCDEF123456").Logger()

	var buf bytes.Buffer
	logger = logger.Output(&buf)
	logger.Info().Msg("polling device")

	output := buf.String()
	if !strings.Contains(output, "polling device") {
		t.Error("Context-created logger should be functional")
	}
	if !strings.Contains(output, "ABCDEF123456") {
		t.Error("Context field should appear in output")
	}
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	Initialize("info")
	SetOutput(&buf)

	Info().Msg("redirected message")

	if !strings.Contains(buf.String(), "redirected message") {
		t.Errorf("SetOutput() should redirect output, got: %s", buf.String())
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    string
		shouldLog   bool
	}{
		{"info logs at info level", "info", "info", true},
		{"debug filtered at info level", "info", "debug", false},
		{"error logs at info level", "info", "error", true},
		{"warn logs at info level", "info", "warn", true},
		{"debug logs at debug level", "debug", "debug", true},
		{"info filtered at error level", "error", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Initialize(tt.configLevel)
			SetOutput(&buf)

			message := "level filtering check"

			switch tt.logLevel {
			case "debug":
				Debug().Msg(message)
			case "info":
				Info().Msg(message)
			case "warn":
				Warn().Msg(message)
			case "error":
				Error().Msg(message)
			}

			hasMessage := strings.Contains(buf.String(), message)
			if tt.shouldLog && !hasMessage {
				t.Errorf("Expected message to be logged at %s level with config %s, but it wasn't", tt.logLevel, tt.configLevel)
			}
			if !tt.shouldLog && hasMessage {
				t.Errorf("Expected message NOT to be logged at %s level with config %s, but it was", tt.logLevel, tt.configLevel)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	Initialize("info")
	SetOutput(&buf)

	Info().
		Str("device_alias", "Office Plug").
		Int("port", 9999).
		Bool("metered", true).
		Float64("power_w", 62.5).
		Msg("reading stored")

	output := buf.String()

	expectedFields := []string{"reading stored", "device_alias", "Office Plug", "port", "9999", "metered", "power_w", "62.5"}
	for _, field := range expectedFields {
		if !strings.Contains(output, field) {
			t.Errorf("Output should contain %q, got: %s", field, output)
		}
	}
}

func TestMultipleInitializations(t *testing.T) {
	Initialize("debug")
	Initialize("info")
	Initialize("error")

	if Get() == nil {
		t.Error("Logger should be initialized after multiple Initialize() calls")
	}
}
