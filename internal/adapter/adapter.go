// Package adapter converts session chat history into the provider's
// strictly-alternating content array.
package adapter

import (
	"strings"

	"github.com/agentrt/agentrt/pkg/models"
)

// systemJoin separates concatenated system messages inside the first user
// turn.
const systemJoin = "\n\n"

// contextPlaceholder is the synthetic leading user turn injected when the
// history has system content but no user turn to carry it.
const contextPlaceholder = "(conversation context)"

// ToProviderContents maps messages to provider contents. System messages
// are collected and their joined text prepended into the first user turn
// (or a synthetic one); user maps to user, assistant to model; consecutive
// same-role turns are merged; and a sequence that would start with model
// gets a synthetic user placeholder prepended.
func ToProviderContents(messages []models.ChatMessage) []models.ProviderContent {
	var systemParts []string
	var rest []models.ChatMessage
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	systemText := strings.Join(systemParts, systemJoin)

	var contents []models.ProviderContent
	injected := systemText == ""
	for _, msg := range rest {
		role := models.ContentRoleUser
		if msg.Role == models.RoleAssistant {
			role = models.ContentRoleModel
		}

		text := msg.Content
		if !injected && role == models.ContentRoleUser {
			text = systemText + systemJoin + text
			injected = true
		}

		part := models.TextPart{Text: text}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1] = contents[n-1].AppendParts(part)
			continue
		}
		contents = append(contents, models.ProviderContent{
			Role:  role,
			Parts: []models.Part{part},
		})
	}

	if !injected {
		// System content with no user turn to host it.
		contents = prependUser(contents, systemText+systemJoin+contextPlaceholder)
	} else if len(contents) > 0 && contents[0].Role == models.ContentRoleModel {
		contents = prependUser(contents, contextPlaceholder)
	}

	return contents
}

func prependUser(contents []models.ProviderContent, text string) []models.ProviderContent {
	lead := models.ProviderContent{
		Role:  models.ContentRoleUser,
		Parts: []models.Part{models.TextPart{Text: text}},
	}
	return append([]models.ProviderContent{lead}, contents...)
}
