package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmbridge/internal/gemini"
	"llmbridge/internal/llm"
)

func textContent(role string, texts ...string) gemini.Content {
	parts := make([]gemini.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, gemini.Part{Text: t})
	}
	return gemini.Content{Role: role, Parts: parts}
}

func TestToChatRequestPreservesCountAndRoles(t *testing.T) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			textContent(gemini.RoleUser, "first question"),
			textContent(gemini.RoleModel, "first answer"),
			textContent(gemini.RoleUser, "second ", "question"),
		},
	}

	out := ToChatRequest(req, "gpt-4o")

	require.Len(t, out.Messages, 3)
	assert.Equal(t, llm.RoleUser, out.Messages[0].Role)
	assert.Equal(t, llm.RoleAssistant, out.Messages[1].Role)
	assert.Equal(t, llm.RoleUser, out.Messages[2].Role)
	assert.Equal(t, "second question", out.Messages[2].Content)
	assert.Equal(t, "gpt-4o", out.Model)
}

func TestRoleMappingIsBijective(t *testing.T) {
	role, ok := mapRole(gemini.RoleModel)
	require.True(t, ok)
	assert.Equal(t, llm.RoleAssistant, role)

	role, ok = mapRole(gemini.RoleUser)
	require.True(t, ok)
	assert.Equal(t, llm.RoleUser, role)

	_, ok = mapRole("system")
	assert.False(t, ok)
}

func TestToChatRequestDefaults(t *testing.T) {
	out := ToChatRequest(gemini.GenerateContentRequest{
		Contents: []gemini.Content{textContent(gemini.RoleUser, "hi")},
	}, "gpt-4o")

	assert.InDelta(t, DefaultTemperature, out.Temperature, 1e-6)
	assert.InDelta(t, DefaultTopP, out.TopP, 1e-6)
	assert.Equal(t, DefaultMaxOutputTokens, out.MaxTokens)
}

func TestToChatRequestGenerationConfigOverrides(t *testing.T) {
	temp := float32(0.7)
	topP := float32(0.9)
	maxTokens := 256

	out := ToChatRequest(gemini.GenerateContentRequest{
		Contents: []gemini.Content{textContent(gemini.RoleUser, "hi")},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     &temp,
			TopP:            &topP,
			MaxOutputTokens: &maxTokens,
		},
	}, "gpt-4o")

	assert.InDelta(t, 0.7, out.Temperature, 1e-6)
	assert.InDelta(t, 0.9, out.TopP, 1e-6)
	assert.Equal(t, 256, out.MaxTokens)
}

func TestToChatRequestMissingContents(t *testing.T) {
	out := ToChatRequest(gemini.GenerateContentRequest{}, "gpt-4o")
	assert.Empty(t, out.Messages)
}

func TestToChatRequestDropsEmptyMessages(t *testing.T) {
	out := ToChatRequest(gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			textContent(gemini.RoleUser, "  "),
			textContent(gemini.RoleUser, "real"),
			{Role: "tool", Parts: []gemini.Part{{Text: "ignored role"}}},
		},
	}, "gpt-4o")

	require.Len(t, out.Messages, 1)
	assert.Equal(t, "real", out.Messages[0].Content)
}

func TestToChatRequestFunctionCallMarker(t *testing.T) {
	out := ToChatRequest(gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Role: gemini.RoleModel,
			Parts: []gemini.Part{
				{Text: "calling now"},
				{FunctionCall: &gemini.FunctionCall{Name: "read_file"}},
			},
		}},
	}, "gpt-4o")

	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0].Content, "[Function Call: read_file]")
}

func TestToChatRequestTools(t *testing.T) {
	out := ToChatRequest(gemini.GenerateContentRequest{
		Contents: []gemini.Content{textContent(gemini.RoleUser, "hi")},
		Tools: []gemini.Tool{{
			FunctionDeclarations: []gemini.FunctionDeclaration{
				{Name: "list_files", Description: "lists files"},
				{Name: "read_file"},
			},
		}},
	}, "gpt-4o")

	require.Len(t, out.Tools, 2)
	assert.Equal(t, "function", out.Tools[0].Type)
	assert.Equal(t, "list_files", out.Tools[0].Function.Name)
	assert.Equal(t, "auto", out.ToolChoice)
}

func TestFromChatResponseStopFinishReason(t *testing.T) {
	resp := &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message:      llm.ChatMessage{Role: llm.RoleAssistant, Content: "done"},
			FinishReason: "stop",
		}},
		Usage: &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	out := FromChatResponse(resp)

	require.Len(t, out.Candidates, 1)
	cand := out.Candidates[0]
	assert.Equal(t, gemini.FinishStop, cand.FinishReason)
	assert.Equal(t, gemini.RoleModel, cand.Content.Role)
	require.Len(t, cand.Content.Parts, 1)
	assert.Equal(t, "done", cand.Content.Parts[0].Text)

	require.NotNil(t, out.UsageMetadata)
	assert.Equal(t, 10, out.UsageMetadata.PromptTokenCount)
	assert.Equal(t, 5, out.UsageMetadata.CandidatesTokenCount)
	assert.Equal(t, 15, out.UsageMetadata.TotalTokenCount)
}

func TestFromChatResponseZeroChoicesFallsBack(t *testing.T) {
	out := FromChatResponse(&llm.ChatResponse{})

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, gemini.FinishOther, out.Candidates[0].FinishReason)
	require.Len(t, out.Candidates[0].Content.Parts, 1)
	assert.Equal(t, FallbackText, out.Candidates[0].Content.Parts[0].Text)
}

func TestFromChatResponseNilNeverPanics(t *testing.T) {
	out := FromChatResponse(nil)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, gemini.FinishOther, out.Candidates[0].FinishReason)
}

func TestFromChatResponseToolCalls(t *testing.T) {
	resp := &llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message: llm.ChatMessage{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{Function: llm.ToolCallFunction{Name: "read_file", Arguments: `{"path":"a.go"}`}},
					{Function: llm.ToolCallFunction{Name: "bad_args", Arguments: `{not json`}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}

	out := FromChatResponse(resp)

	require.Len(t, out.Candidates, 1)
	parts := out.Candidates[0].Content.Parts
	require.Len(t, parts, 2)

	require.NotNil(t, parts[0].FunctionCall)
	assert.Equal(t, "read_file", parts[0].FunctionCall.Name)
	assert.Equal(t, map[string]any{"path": "a.go"}, parts[0].FunctionCall.Args)

	// Invalid argument JSON degrades to an empty map.
	require.NotNil(t, parts[1].FunctionCall)
	assert.Empty(t, parts[1].FunctionCall.Args)

	assert.Equal(t, gemini.FinishOther, out.Candidates[0].FinishReason)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, gemini.FinishStop, MapFinishReason("stop"))
	assert.Equal(t, gemini.FinishOther, MapFinishReason("length"))
	assert.Equal(t, gemini.FinishOther, MapFinishReason(""))
}

func TestFromStreamChunk(t *testing.T) {
	chunk := &llm.StreamChunk{Delta: "hel", FinishReason: "stop"}
	usage := gemini.UsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 1, TotalTokenCount: 5}

	out := FromStreamChunk(chunk, usage)

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "hel", out.Candidates[0].Content.Parts[0].Text)
	assert.Equal(t, gemini.FinishStop, out.Candidates[0].FinishReason)
	require.NotNil(t, out.UsageMetadata)
	assert.Equal(t, 5, out.UsageMetadata.TotalTokenCount)
}
