// Package compactor keeps conversation history inside the provider's
// context window by summarizing an older prefix of the message list into a
// single system message, using the same model that serves the conversation.
package compactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentrt/agentrt/internal/backoff"
	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/provider"
	"github.com/agentrt/agentrt/internal/tokens"
	"github.com/agentrt/agentrt/pkg/models"
)

// SummaryPrefix marks the compaction summary system message.
const SummaryPrefix = "[Conversation Summary]\n"

const (
	// summaryTemperature and summaryMaxTokens configure summarization
	// calls.
	summaryTemperature = 0.3
	summaryMaxTokens   = 4096

	// transcriptMessageCap truncates one message's content before
	// transcript formatting.
	transcriptMessageCap = 8000

	// fallbackExtraTurns is added to RecentTurnsToKeep when summarization
	// itself fails and we fall back to plain turn-limiting.
	fallbackExtraTurns = 2

	// summaryMaxAttempts bounds retries for transient provider failures
	// before the turn-limit fallback takes over.
	summaryMaxAttempts = 2
)

const summarizationPrompt = "Produce a concise summary of the conversation, preserving key facts " +
	"the user shared, topics discussed, decisions made, and ongoing context. Write in third " +
	"person. Organize by topic, not chronologically. Target roughly 20% of the original length. " +
	"If a previous summary is given, merge its content with the new messages."

const mergePrompt = "Merge the following partial conversation summaries into a single coherent " +
	"summary. Organize by topic, remove duplication, and preserve all key facts and decisions."

// Result describes one compaction pass.
type Result struct {
	Compacted         bool
	Messages          []models.ChatMessage
	TokensBefore      int
	TokensAfter       int
	MessagesCompacted int
}

// Compactor runs the multi-stage summarization algorithm.
type Compactor struct {
	generator provider.Generator
	limit     int
	logger    *observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// New builds a Compactor. limit <= 0 selects the default context limit.
func New(generator provider.Generator, limit int, logger *observability.Logger, metrics *observability.Metrics) *Compactor {
	if limit <= 0 {
		limit = tokens.DefaultContextLimit
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Compactor{
		generator: generator,
		limit:     limit,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CompactIfNeeded returns the input untouched unless the threshold check
// trips; otherwise it replaces the older prefix with a single summary
// system message. On any provider failure it falls back to turn-limiting
// (no summary) and still reports Compacted.
func (c *Compactor) CompactIfNeeded(ctx context.Context, messages []models.ChatMessage, systemTokens int, apiKey, model string) Result {
	untouched := Result{Messages: messages}
	if !tokens.ShouldCompact(systemTokens, messages, c.limit) {
		c.countOutcome("skipped")
		return untouched
	}

	toCompact, toKeep := tokens.Split(messages)
	if len(toCompact) == 0 {
		c.countOutcome("skipped")
		return untouched
	}

	tokensBefore := systemTokens + tokens.EstimateMessages(messages)

	previousSummary, toSummarize := extractPreviousSummary(toCompact)

	summary, err := c.summarize(ctx, toSummarize, previousSummary, apiKey, model)
	if err != nil {
		c.logger.Warn(ctx, "summarization failed, falling back to turn limiting", "error", err)
		c.countOutcome("fallback")
		fallback := limitTurns(messages, tokens.RecentTurnsToKeep+fallbackExtraTurns)
		return Result{
			Compacted:         true,
			Messages:          fallback,
			TokensBefore:      tokensBefore,
			TokensAfter:       systemTokens + tokens.EstimateMessages(fallback),
			MessagesCompacted: len(messages) - len(fallback),
		}
	}

	summaryMsg := models.ChatMessage{
		ID:        fmt.Sprintf("summary_%d", c.now().UnixMilli()),
		Role:      models.RoleSystem,
		Content:   SummaryPrefix + summary,
		Timestamp: c.now().UnixMilli(),
	}
	compacted := append([]models.ChatMessage{summaryMsg}, toKeep...)

	tokensAfter := systemTokens + tokens.EstimateMessages(compacted)
	c.countOutcome("summarized")
	c.observeTokens(tokensBefore, tokensAfter)

	return Result{
		Compacted:         true,
		Messages:          compacted,
		TokensBefore:      tokensBefore,
		TokensAfter:       tokensAfter,
		MessagesCompacted: len(toCompact),
	}
}

// summarize produces the new summary text: one call when the set fits in a
// single chunk, otherwise chunked partial summaries merged by a second
// call (concatenated if the merge itself fails).
func (c *Compactor) summarize(ctx context.Context, toSummarize []models.ChatMessage, previousSummary, apiKey, model string) (string, error) {
	chunkMax := int(tokens.SummarizationChunkRatio * float64(c.limit))

	if tokens.EstimateMessages(toSummarize) <= chunkMax {
		return c.summarizeOnce(ctx, toSummarize, previousSummary, apiKey, model)
	}

	chunks := tokens.ChunkByTokens(toSummarize, chunkMax)
	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		// Only the first chunk sees the previous summary; later chunks are
		// merged with everything anyway.
		prev := ""
		if i == 0 {
			prev = previousSummary
		}
		partial, err := c.summarizeOnce(ctx, chunk, prev, apiKey, model)
		if err != nil {
			return "", err
		}
		partials = append(partials, partial)
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	merged, err := c.merge(ctx, partials, apiKey, model)
	if err != nil {
		c.logger.Warn(ctx, "summary merge failed, concatenating partials", "error", err)
		return strings.Join(partials, "\n\n"), nil
	}
	return merged, nil
}

func (c *Compactor) summarizeOnce(ctx context.Context, chunk []models.ChatMessage, previousSummary, apiKey, model string) (string, error) {
	var transcript strings.Builder
	if previousSummary != "" {
		transcript.WriteString("Previous summary:\n")
		transcript.WriteString(previousSummary)
		transcript.WriteString("\n\nNew messages:\n")
	}
	transcript.WriteString(formatTranscript(chunk))

	return c.generate(ctx, summarizationPrompt, transcript.String(), apiKey, model)
}

func (c *Compactor) merge(ctx context.Context, partials []string, apiKey, model string) (string, error) {
	var body strings.Builder
	for i, partial := range partials {
		fmt.Fprintf(&body, "Part %d:\n%s\n\n", i+1, partial)
	}
	return c.generate(ctx, mergePrompt, body.String(), apiKey, model)
}

func (c *Compactor) generate(ctx context.Context, system, user, apiKey, model string) (string, error) {
	temp := summaryTemperature
	req := provider.Request{
		APIKey:            apiKey,
		Model:             model,
		SystemInstruction: system,
		Contents: []models.ProviderContent{{
			Role:  models.ContentRoleUser,
			Parts: []models.Part{models.TextPart{Text: user}},
		}},
		Temperature:     &temp,
		MaxOutputTokens: summaryMaxTokens,
	}

	resp, err := backoff.Retry(ctx, backoff.ForReason(2*time.Second), summaryMaxAttempts,
		func(int) (*provider.Response, error) {
			return c.generator.Generate(ctx, req)
		},
		func(err error) bool {
			return provider.ClassifyErr(err).Retryable
		})
	if err != nil {
		return "", fmt.Errorf("compactor: summarization call: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("compactor: summarization returned empty text")
	}
	return resp.Text, nil
}

// extractPreviousSummary pulls an existing summary system message out of
// the set to summarize, so its content merges into the new summary instead
// of being summarized as if it were conversation.
func extractPreviousSummary(toCompact []models.ChatMessage) (string, []models.ChatMessage) {
	previous := ""
	rest := make([]models.ChatMessage, 0, len(toCompact))
	for _, msg := range toCompact {
		if msg.Role == models.RoleSystem && strings.HasPrefix(msg.Content, SummaryPrefix) {
			previous = strings.TrimPrefix(msg.Content, SummaryPrefix)
			continue
		}
		rest = append(rest, msg)
	}
	return previous, rest
}

// formatTranscript renders messages for the summarization prompt, capping
// each message's content.
func formatTranscript(messages []models.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		content := msg.Content
		if len(content) > transcriptMessageCap {
			content = content[:transcriptMessageCap]
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, content)
	}
	return b.String()
}

// limitTurns keeps only the last n user turns and everything after the
// first of them (their responses), dropping older history without a
// summary.
func limitTurns(messages []models.ChatMessage, n int) []models.ChatMessage {
	userCount := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			userCount++
			if userCount == n {
				return messages[i:]
			}
		}
	}
	return messages
}

func (c *Compactor) countOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.CompactionsRun.WithLabelValues(outcome).Inc()
	}
}

func (c *Compactor) observeTokens(before, after int) {
	if c.metrics != nil {
		c.metrics.CompactionTokens.WithLabelValues("before").Observe(float64(before))
		c.metrics.CompactionTokens.WithLabelValues("after").Observe(float64(after))
	}
}
