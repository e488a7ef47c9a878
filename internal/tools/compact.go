package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/agentrt/agentrt/internal/contextstore"
)

const (
	// searchResultsKept caps list-shaped results.
	searchResultsKept = 5
	// snippetCap truncates each kept snippet.
	snippetCap = 120
	// spillThreshold is the document length above which the full body is
	// written to the context store and replaced by a pointer.
	spillThreshold = 4 << 10
	// truncateCap bounds unparseable results.
	truncateCap = 4000
	// previewLen is how much of a spilled document stays inline.
	previewLen = 500

	truncationMarker = "[...truncated]"
)

// ResultCompactor shrinks tool results before they rejoin the provider
// conversation, so one verbose tool round doesn't eat the context window.
type ResultCompactor struct {
	store   contextstore.Loader
	counter atomic.Uint64
}

// NewResultCompactor builds a compactor spilling large documents into
// store. A nil store disables the spill policy (large documents are
// truncated instead).
func NewResultCompactor(store contextstore.Loader) *ResultCompactor {
	return &ResultCompactor{store: store}
}

// searchResult is the list-shaped payload searched tools produce.
type searchResult struct {
	Query   string        `json:"query,omitempty"`
	Count   int           `json:"count,omitempty"`
	TookMs  int64         `json:"tookMs,omitempty"`
	Results []searchEntry `json:"results"`
}

type searchEntry struct {
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	SiteName string `json:"siteName,omitempty"`
}

// Compact applies the per-shape policy to one raw result text and returns
// the compacted replacement. It never errors: anything unrecognized falls
// back to plain truncation.
func (c *ResultCompactor) Compact(toolName, raw, agentID string, iteration int) string {
	if compacted, ok := c.compactSearch(raw); ok {
		return compacted
	}
	if len(raw) > spillThreshold {
		if compacted, ok := c.spill(toolName, raw); ok {
			return compacted
		}
	}
	if len(raw) > truncateCap {
		return raw[:truncateCap] + truncationMarker
	}
	return raw
}

// compactSearch keeps the top entries of a list-shaped result and trims
// each snippet.
func (c *ResultCompactor) compactSearch(raw string) (string, bool) {
	var parsed searchResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", false
	}
	if parsed.Results == nil {
		return "", false
	}

	if len(parsed.Results) > searchResultsKept {
		parsed.Results = parsed.Results[:searchResultsKept]
	}
	for i := range parsed.Results {
		if len(parsed.Results[i].Snippet) > snippetCap {
			parsed.Results[i].Snippet = parsed.Results[i].Snippet[:snippetCap]
		}
	}

	out, err := json.Marshal(parsed)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// spill writes the full body to the context store and substitutes a
// pointer payload.
func (c *ResultCompactor) spill(toolName, raw string) (string, bool) {
	if c.store == nil {
		return "", false
	}

	filename := c.filename(toolName, raw)
	if err := c.store.Write(filename, []byte(raw)); err != nil {
		return "", false
	}

	preview := raw
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	pointer := map[string]any{
		"savedTo": filename,
		"hint":    "full content saved to workspace; read the file to see the rest",
		"preview": preview,
	}
	out, err := json.Marshal(pointer)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// filename builds a monotonic, collision-free spill name.
func (c *ResultCompactor) filename(toolName, raw string) string {
	n := c.counter.Add(1)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s-%d-%s.txt", toolName, n, hex.EncodeToString(sum[:4]))
}
