package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/agentrt/agentrt/internal/contextstore"
)

func TestCompactSearchResult(t *testing.T) {
	compactor := NewResultCompactor(nil)

	entries := make([]map[string]any, 10)
	for i := range entries {
		entries[i] = map[string]any{
			"title":    "Result",
			"url":      "https://example.com",
			"snippet":  strings.Repeat("s", 300),
			"siteName": "Example",
			"rank":     i, // dropped by the policy
		}
	}
	raw, _ := json.Marshal(map[string]any{
		"query":   "golang",
		"count":   10,
		"tookMs":  42,
		"results": entries,
	})

	out := compactor.Compact("web_search", string(raw), "agent", 0)

	var parsed searchResult
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if len(parsed.Results) != searchResultsKept {
		t.Errorf("kept %d results, want %d", len(parsed.Results), searchResultsKept)
	}
	for i, entry := range parsed.Results {
		if len(entry.Snippet) > snippetCap {
			t.Errorf("result[%d] snippet len = %d, want <= %d", i, len(entry.Snippet), snippetCap)
		}
	}
	if parsed.Query != "golang" || parsed.TookMs != 42 {
		t.Errorf("metadata lost: %+v", parsed)
	}
	if strings.Contains(out, "rank") {
		t.Error("unlisted fields should be dropped")
	}
}

func TestCompactSpillsLargeDocument(t *testing.T) {
	store := contextstore.NewMemoryLoader()
	compactor := NewResultCompactor(store)

	raw := strings.Repeat("x", spillThreshold+1)
	out := compactor.Compact("fetch", raw, "agent", 1)

	var pointer map[string]any
	if err := json.Unmarshal([]byte(out), &pointer); err != nil {
		t.Fatalf("pointer not JSON: %v", err)
	}
	savedTo, _ := pointer["savedTo"].(string)
	if !strings.HasPrefix(savedTo, "fetch-1-") || !strings.HasSuffix(savedTo, ".txt") {
		t.Errorf("savedTo = %q, want fetch-1-<hash>.txt", savedTo)
	}
	preview, _ := pointer["preview"].(string)
	if len(preview) != previewLen {
		t.Errorf("preview len = %d, want %d", len(preview), previewLen)
	}

	stored, err := store.Read(savedTo)
	if err != nil {
		t.Fatalf("spilled file not readable: %v", err)
	}
	if string(stored) != raw {
		t.Error("spilled content does not match original")
	}
}

func TestCompactFilenamesMonotonic(t *testing.T) {
	store := contextstore.NewMemoryLoader()
	compactor := NewResultCompactor(store)

	big := strings.Repeat("y", spillThreshold+1)
	first := compactor.Compact("fetch", big, "agent", 0)
	second := compactor.Compact("fetch", big+"z", "agent", 0)

	if strings.Contains(first, "fetch-1-") == false {
		t.Errorf("first spill = %q, want counter 1", first)
	}
	if strings.Contains(second, "fetch-2-") == false {
		t.Errorf("second spill = %q, want counter 2", second)
	}
}

func TestCompactTruncatesUnparseable(t *testing.T) {
	compactor := NewResultCompactor(nil)

	raw := strings.Repeat("a", truncateCap+100)
	out := compactor.Compact("misc", raw, "agent", 0)

	if !strings.HasSuffix(out, truncationMarker) {
		t.Errorf("output should end with truncation marker: %q", out[len(out)-30:])
	}
	if len(out) != truncateCap+len(truncationMarker) {
		t.Errorf("output len = %d", len(out))
	}
}

func TestCompactLeavesSmallResultsAlone(t *testing.T) {
	compactor := NewResultCompactor(nil)
	raw := `{"ok":true}`
	if out := compactor.Compact("misc", raw, "agent", 0); out != raw {
		t.Errorf("small result modified: %q", out)
	}
}
