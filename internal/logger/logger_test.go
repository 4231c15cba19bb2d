package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shaunagostinho/geotrack/internal/config"
)

func TestJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "tracker").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["message"] != "shown" || entry["component"] != "tracker" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	log.Debug().Msg("console line")

	if !strings.Contains(buf.String(), "console line") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("text format should not emit JSON: %q", buf.String())
	}
}
