package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/agentrt/agentrt/internal/contextstore"
	"github.com/agentrt/agentrt/internal/tools"
	"github.com/agentrt/agentrt/pkg/models"
)

func stubTool(name, description string) models.ToolDefinition {
	return models.ToolDefinition{
		Name:        name,
		Description: description,
		Execute: func(_ context.Context, callID string, _ map[string]any) models.ToolResult {
			return models.TextResult(callID, "{}")
		},
	}
}

func fullOptions(t *testing.T) Options {
	t.Helper()
	registry := tools.NewRegistry(nil)
	for _, tool := range []models.ToolDefinition{
		stubTool("web_search", "Searches the web. Returns ranked results."),
		stubTool("memory_search", "Searches session memory."),
		stubTool("read_file", "Reads a workspace file."),
	} {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}

	loader := contextstore.NewMemoryLoader()
	loader.Seed(map[string]string{
		"NOTES.md": "remember the thing",
	})

	return Options{
		Agent:        AgentConfig{Name: "Iris"},
		Registry:     registry,
		Loader:       loader,
		ContextFiles: []string{"NOTES.md"},
		WorkspaceDir: "/srv/workspace",
		Runtime: RuntimeInfo{
			Agent:        "Iris",
			Host:         "box",
			OS:           "linux",
			Model:        "gemini-test",
			DefaultModel: "gemini-test",
			Channel:      "websocket",
			Capabilities: []string{"web_search", "read_file"},
			Thinking:     "low",
		},
		Timezone:       "UTC",
		CurrentTime:    "Mon, 01 Jan 2026 00:00:00 UTC",
		CharacterState: "idle",
		Mode:           ModeFull,
	}
}

func TestBuildModeNone(t *testing.T) {
	opts := fullOptions(t)
	opts.Mode = ModeNone

	got := Build(opts)
	if got != "You are Iris, a helpful assistant." {
		t.Errorf("ModeNone output = %q", got)
	}
}

func TestBuildFullSections(t *testing.T) {
	got := Build(fullOptions(t))

	for _, want := range []string{
		"You are Iris, a helpful assistant.",
		"## Tools",
		"web_search: Searches the web.",
		"## Fresh data",
		"## Soul",
		"## Safety",
		"## Session memory",
		"Workspace directory: /srv/workspace",
		"- NOTES.md",
		"## Time\nTimezone: UTC",
		"## NOTES.md\nremember the thing",
		"runtime: agent=Iris, host=box, os=linux, model=gemini-test, default_model=gemini-test, channel=websocket, capabilities=web_search,read_file, thinking=low",
		"## Avatar State\nidle",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("full prompt missing %q", want)
		}
	}
}

func TestBuildSectionOrderStable(t *testing.T) {
	opts := fullOptions(t)
	first := Build(opts)
	second := Build(opts)
	if first != second {
		t.Error("two builds over the same inputs must be identical")
	}

	identity := strings.Index(first, "You are Iris")
	safety := strings.Index(first, "## Safety")
	runtimeLine := strings.Index(first, "runtime: agent=")
	if !(identity < safety && safety < runtimeLine) {
		t.Errorf("section order wrong: identity=%d safety=%d runtime=%d", identity, safety, runtimeLine)
	}
}

func TestBuildMinimalOmissions(t *testing.T) {
	opts := fullOptions(t)
	opts.Mode = ModeMinimal
	got := Build(opts)

	for _, absent := range []string{
		"## Session memory",
		"remember the thing", // project-context body
	} {
		if strings.Contains(got, absent) {
			t.Errorf("minimal prompt should omit %q", absent)
		}
	}
	if !strings.Contains(got, "## Safety") {
		t.Error("safety block is never omitted")
	}
	if !strings.Contains(got, "Workspace directory: /srv/workspace") {
		t.Error("workspace dir line is kept in minimal mode")
	}
}

func TestBuildGatedSectionsAbsentWithoutTools(t *testing.T) {
	opts := fullOptions(t)
	opts.Registry = tools.NewRegistry(nil)
	got := Build(opts)

	for _, absent := range []string{"## Fresh data", "## Soul", "## Session memory", "## Tools"} {
		if strings.Contains(got, absent) {
			t.Errorf("prompt without tools should omit %q", absent)
		}
	}
}

func TestRuntimeLineEmptyCapabilities(t *testing.T) {
	opts := fullOptions(t)
	opts.Runtime.Capabilities = nil
	opts.Runtime.Thinking = ""
	got := Build(opts)

	if !strings.Contains(got, "capabilities=none, thinking=none") {
		t.Errorf("runtime line should use none placeholders: %q", got)
	}
}

func TestMissingContextFileSkipped(t *testing.T) {
	opts := fullOptions(t)
	opts.ContextFiles = []string{"NOTES.md", "MISSING.md"}
	got := Build(opts)

	if !strings.Contains(got, "## NOTES.md") {
		t.Error("present file should be embedded")
	}
	if strings.Contains(got, "## MISSING.md") {
		t.Error("absent file must be skipped, not fail the build")
	}
}
