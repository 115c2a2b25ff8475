package obslog

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWritesJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Service: "sentinel-worker", Level: "info", Writer: &buf})
	log.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v (%s)", err, buf.String())
	}
	if entry["service"] != "sentinel-worker" {
		t.Fatalf("service field = %v, want sentinel-worker", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("message field = %v, want hello", entry["message"])
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("not-a-level"); got.String() != "info" {
		t.Fatalf("parseLevel(invalid) = %v, want info", got)
	}
	if got := parseLevel("DEBUG"); got.String() != "debug" {
		t.Fatalf("parseLevel(DEBUG) = %v, want debug", got)
	}
}
