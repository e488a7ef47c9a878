package orchestrator

import "regexp"

// thinkRe matches complete thinking-tag blocks; openThinkRe catches an
// unterminated trailing block, which streaming can produce when the model
// is cut off mid-thought.
var (
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	openThinkRe = regexp.MustCompile(`(?s)<think>.*$`)
)

// stripThinking removes thinking-tag wrappers before the user-visible
// message is persisted.
func stripThinking(s string) string {
	s = thinkRe.ReplaceAllString(s, "")
	s = openThinkRe.ReplaceAllString(s, "")
	return s
}
