package gateway

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/agentrt/agentrt/internal/adapter"
	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/orchestrator"
	"github.com/agentrt/agentrt/internal/prompt"
	"github.com/agentrt/agentrt/internal/sessions"
	"github.com/agentrt/agentrt/internal/tokens"
	"github.com/agentrt/agentrt/pkg/models"
)

// dispatchSend either starts a generation for the draft or, when one is
// already active, queues it and ACKs "queued".
func (s *Server) dispatchSend(conn *wsConn, frameID, text, characterState string) error {
	sessionID := conn.session()

	cancellation, err := s.sessions.BeginGeneration(conn.ctx, sessionID)
	if errors.Is(err, sessions.ErrGenerationActive) {
		depth, enqueueErr := s.sessions.Enqueue(conn.ctx, sessionID, models.QueuedMessage{
			Content:        text,
			CharacterState: characterState,
		})
		if enqueueErr != nil {
			return enqueueErr
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.Observe(float64(depth))
		}
		return conn.sendResponse(frameID, map[string]any{"status": "queued"})
	}
	if err != nil {
		return err
	}

	if err := conn.sendResponse(frameID, map[string]any{"status": "accepted"}); err != nil {
		s.sessions.EndGeneration(sessionID, cancellation)
		return err
	}

	go s.generate(conn, sessionID, cancellation, text, characterState)
	return nil
}

// generate runs one full generation: append the user message, assemble the
// system prompt, compact if needed, run the orchestrator, persist the
// result, and flush the next queued draft.
func (s *Server) generate(conn *wsConn, sessionID string, cancellation *models.Cancellation, text, characterState string) {
	generationID := uuid.NewString()
	logCtx := observability.AddGenerationID(
		observability.AddSessionID(context.Background(), sessionID), generationID)

	defer func() {
		s.sessions.EndGeneration(sessionID, cancellation)
		s.flushNext(conn, sessionID)
	}()

	userMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.sessions.Append(logCtx, sessionID, userMsg); err != nil {
		s.logger.Error(logCtx, "append user message failed", "error", err)
		conn.forward(models.ErrorEvent("session unavailable"))
		return
	}

	systemPrompt := s.buildSystemPrompt(characterState)
	systemTokens := tokens.Estimate(systemPrompt)

	history, err := s.sessions.Snapshot(logCtx, sessionID)
	if err != nil {
		s.logger.Error(logCtx, "snapshot failed", "error", err)
		conn.forward(models.ErrorEvent("session unavailable"))
		return
	}

	history = s.maybeCompact(logCtx, conn, sessionID, history, systemTokens)

	var thinkingBudget *int
	if s.cfg.LLM.ThinkingBudget > 0 {
		budget := s.cfg.LLM.ThinkingBudget
		thinkingBudget = &budget
	}

	events := s.orchestrator.Run(cancellation.Context(), orchestrator.RunParams{
		APIKey:            s.cfg.LLM.APIKey,
		Model:             s.cfg.LLM.Model,
		ThinkingBudget:    thinkingBudget,
		InitialContents:   adapter.ToProviderContents(history),
		SystemInstruction: systemPrompt,
		AgentID:           s.cfg.Agent.Name,
		EnableTools:       true,
	})

	for ev := range events {
		conn.forward(ev)
		if ev.Kind == models.EventDone && ev.DoneMessage != nil {
			if err := s.sessions.Append(logCtx, sessionID, *ev.DoneMessage); err != nil {
				s.logger.Error(logCtx, "append assistant message failed", "error", err)
			}
		}
	}
}

// maybeCompact runs the compaction check, emitting the compacting frames
// around an actual compaction and committing the result to the session.
func (s *Server) maybeCompact(ctx context.Context, conn *wsConn, sessionID string, history []models.ChatMessage, systemTokens int) []models.ChatMessage {
	if s.compactor == nil || !tokens.ShouldCompact(systemTokens, history, s.cfg.LLM.ContextLimit) {
		return history
	}

	conn.forward(models.CompactingStartEvent())
	result := s.compactor.CompactIfNeeded(ctx, history, systemTokens, s.cfg.LLM.APIKey, s.cfg.LLM.Model)
	if !result.Compacted {
		conn.forward(models.CompactingDoneEvent(0))
		return history
	}

	if err := s.sessions.Replace(ctx, sessionID, result.Messages); err != nil {
		s.logger.Error(ctx, "commit compaction failed", "error", err)
	}
	s.logger.Info(ctx, "history compacted",
		"messages_compacted", result.MessagesCompacted,
		"tokens_before", result.TokensBefore,
		"tokens_after", result.TokensAfter)

	conn.forward(models.CompactingDoneEvent(result.MessagesCompacted))
	return result.Messages
}

// flushNext pops exactly one queued draft and starts its generation; each
// completion re-triggers the next pop.
func (s *Server) flushNext(conn *wsConn, sessionID string) {
	head, err := s.sessions.FlushNext(conn.ctx, sessionID)
	if err != nil || head == nil {
		return
	}

	cancellation, err := s.sessions.BeginGeneration(conn.ctx, sessionID)
	if err != nil {
		// Another generation won the race; the draft goes back to the
		// front of the queue so nothing is lost.
		if _, requeueErr := s.sessions.Enqueue(conn.ctx, sessionID, *head); requeueErr != nil {
			s.logger.Error(conn.ctx, "requeue after flush race failed", "error", requeueErr)
		}
		return
	}

	go s.generate(conn, sessionID, cancellation, head.Content, head.CharacterState)
}

// buildSystemPrompt assembles the prompt for this request.
func (s *Server) buildSystemPrompt(characterState string) string {
	host, _ := os.Hostname()

	var contextFiles []string
	if s.loader != nil {
		if paths, err := s.loader.List(); err == nil {
			contextFiles = paths
		}
	}

	now := time.Now()
	if loc, err := time.LoadLocation(s.cfg.Agent.Timezone); err == nil {
		now = now.In(loc)
	}

	return prompt.Build(prompt.Options{
		Agent: prompt.AgentConfig{
			Name:           s.cfg.Agent.Name,
			CustomIdentity: s.cfg.Agent.CustomIdentity,
			ResponseStyle:  s.cfg.Agent.ResponseStyle,
			ExtraSystem:    s.cfg.Agent.ExtraSystemPrompt,
		},
		Registry:     s.registry,
		Loader:       s.loader,
		ContextFiles: contextFiles,
		WorkspaceDir: s.cfg.Agent.WorkspaceDir,
		Runtime: prompt.RuntimeInfo{
			Agent:        s.cfg.Agent.Name,
			Host:         host,
			OS:           runtime.GOOS,
			Model:        s.cfg.LLM.Model,
			DefaultModel: s.cfg.LLM.Model,
			Channel:      "websocket",
			Capabilities: s.registry.Names(),
			Thinking:     thinkingLevel(s.cfg.LLM.ThinkingBudget),
		},
		Timezone:       s.cfg.Agent.Timezone,
		CurrentTime:    now.Format(time.RFC1123),
		CharacterState: characterState,
		Mode:           prompt.ModeFull,
	})
}

func thinkingLevel(budget int) string {
	switch {
	case budget <= 0:
		return "none"
	case budget < 4096:
		return "low"
	case budget < 16384:
		return "medium"
	default:
		return "high"
	}
}
