// Package tokens estimates token usage and splits conversation history for
// compaction. The chunking/splitting shape is grounded on the reference
// codebase's internal/compaction package (EstimateTokens,
// SplitMessagesByTokenShare); the exact formula and thresholds here follow
// this project's own numbers (ceil(len/3.5) rather than the reference's
// ceil(len/4), recency-preserving user-turn splitting rather than an
// N-way equal split).
package tokens

import (
	"math"

	"github.com/agentrt/agentrt/pkg/models"
)

const (
	// CharsPerToken is the divisor for the character-count heuristic.
	CharsPerToken = 3.5
	// PerMessageOverhead approximates role/formatting tokens.
	PerMessageOverhead = 10
	// RecentTurnsToKeep is how many trailing user turns compaction leaves
	// untouched.
	RecentTurnsToKeep = 4
	// DefaultContextLimit is the provider's context window in tokens.
	DefaultContextLimit = 128_000
	// SummarizationChunkRatio bounds a single summarization call's input.
	SummarizationChunkRatio = 0.4
)

// Estimate returns ceil(len(text)/3.5).
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / CharsPerToken))
}

// EstimateMessage includes the per-message overhead.
func EstimateMessage(msg models.ChatMessage) int {
	return Estimate(msg.Content) + PerMessageOverhead
}

// EstimateMessages sums EstimateMessage over the slice.
func EstimateMessages(messages []models.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessage(m)
	}
	return total
}

// ShouldCompact triggers when there are at least 6 messages and the
// 1.2x-padded total exceeds 75% of limit.
func ShouldCompact(systemTokens int, messages []models.ChatMessage, limit int) bool {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	if len(messages) < 6 {
		return false
	}
	total := float64(systemTokens+EstimateMessages(messages)) * 1.2
	return total > 0.75*float64(limit)
}

// Split scans from the end of messages, keeping everything from the
// RecentTurnsToKeep-th-from-last user message onward. If fewer than
// RecentTurnsToKeep user turns exist, toCompact is empty.
func Split(messages []models.ChatMessage) (toCompact, toKeep []models.ChatMessage) {
	userCount := 0
	splitAt := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			userCount++
			if userCount == RecentTurnsToKeep {
				splitAt = i
				break
			}
		}
	}
	if splitAt < 0 {
		return nil, messages
	}
	return messages[:splitAt], messages[splitAt:]
}

// ChunkByTokens greedily packs messages into chunks whose estimated token
// sum is <= max; a single oversized message becomes its own chunk.
func ChunkByTokens(messages []models.ChatMessage, max int) [][]models.ChatMessage {
	if max <= 0 {
		max = int(SummarizationChunkRatio * DefaultContextLimit)
	}
	var chunks [][]models.ChatMessage
	var current []models.ChatMessage
	currentTokens := 0

	for _, m := range messages {
		mt := EstimateMessage(m)
		if len(current) > 0 && currentTokens+mt > max {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, m)
		currentTokens += mt
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
