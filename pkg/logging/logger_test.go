package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}

	if cfg.Service != "pattern-proxy" {
		t.Errorf("Expected default service to be pattern-proxy, got %q", cfg.Service)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{LevelTrace, []string{"trace", "debug", "info", "warn", "error"}, nil},
		{LevelDebug, []string{"debug", "info", "warn", "error"}, []string{"trace"}},
		{LevelInfo, []string{"info", "warn", "error"}, []string{"trace", "debug"}},
		{LevelWarn, []string{"warn", "error"}, []string{"trace", "debug", "info"}},
		{LevelError, []string{"error"}, []string{"trace", "debug", "info", "warn"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})
			t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

			logger.Trace().Msg("trace pattern")
			logger.Debug().Msg("debug pattern")
			logger.Info().Msg("info pattern")
			logger.Warn().Msg("warn pattern")
			logger.Error().Msg("error pattern")

			output := buf.String()
			for _, lvl := range tt.visible {
				if !strings.Contains(output, lvl+" pattern") {
					t.Errorf("Expected %s message at %s level, got %q", lvl, tt.level, output)
				}
			}
			for _, lvl := range tt.hidden {
				if strings.Contains(output, lvl+" pattern") {
					t.Errorf("%s message should be filtered out at %s level", lvl, tt.level)
				}
			}
		})
	}
}

func TestSetup_ServiceField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{
		Level:   LevelInfo,
		Output:  buf,
		Service: "pattern-proxy",
	})

	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"service":"pattern-proxy"`) {
		t.Errorf("Expected service field, got %q", buf.String())
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: buf,
	})

	logger.Info().Str("cache_key", "pattern:GET:x").Msg("Cache hit")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("Expected console output, got JSON %q", output)
	}
	if !strings.Contains(output, "Cache hit") {
		t.Errorf("Expected message in output, got %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelTrace, zerolog.TraceLevel},
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Output: buf,
	})

	logger := NewLogger("upstream")
	logger.Info().Msg("Fetching from upstream")

	output := buf.String()
	if !strings.Contains(output, `"component":"upstream"`) {
		t.Errorf("Expected component field, got %q", output)
	}
	if !strings.Contains(output, "Fetching from upstream") {
		t.Errorf("Expected message in output, got %q", output)
	}
}
