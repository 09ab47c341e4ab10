package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
)

// Not parallel: InitWriter replaces the global logger.
func TestInitWriterLevels(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	InitWriter(&buf, Config{})
	log.Debug().Msg("hidden")
	log.Info().Str("session_id", "s-1").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["session_id"] != "s-1" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	buf.Reset()
	InitWriter(&buf, Config{Debug: true})
	log.Debug().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("debug entry missing with Debug enabled")
	}
}
