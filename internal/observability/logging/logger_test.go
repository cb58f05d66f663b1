package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONLoggerTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "askctl", "warn")

	logger.Info("index_rebuilt", "rows", 3)
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %s", buf.String())
	}

	logger.Warn("index_reload_failed", "error", "boom")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["service"] != "askctl" || record["msg"] != "index_reload_failed" {
		t.Fatalf("unexpected record: %v", record)
	}
}
