package translate

import (
	"encoding/json"

	"llmbridge/internal/gemini"
	"llmbridge/internal/llm"
)

// FallbackText is returned when the upstream response carries no choices.
const FallbackText = "I apologize, but I was unable to generate a response. Please try again."

// FromChatResponse translates an upstream chat response back into Gemini
// shape. A response with zero choices yields a fallback candidate with
// finishReason OTHER instead of an error.
func FromChatResponse(resp *llm.ChatResponse) gemini.GenerateContentResponse {
	out := gemini.GenerateContentResponse{
		UsageMetadata: &gemini.UsageMetadata{},
	}
	if resp == nil {
		out.Candidates = []gemini.Candidate{fallbackCandidate()}
		return out
	}

	if resp.Usage != nil {
		out.UsageMetadata.PromptTokenCount = resp.Usage.PromptTokens
		out.UsageMetadata.CandidatesTokenCount = resp.Usage.CompletionTokens
		out.UsageMetadata.TotalTokenCount = resp.Usage.TotalTokens
	}

	if len(resp.Choices) == 0 {
		out.Candidates = []gemini.Candidate{fallbackCandidate()}
		return out
	}

	choice := resp.Choices[0]

	var parts []gemini.Part
	if choice.Message.Content != "" {
		parts = append(parts, gemini.Part{Text: choice.Message.Content})
	}

	for _, call := range choice.Message.ToolCalls {
		name := call.Function.Name
		if name == "" {
			name = "unknown"
		}

		// Invalid argument JSON degrades to an empty map.
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}

		parts = append(parts, gemini.Part{
			FunctionCall: &gemini.FunctionCall{
				Name: name,
				Args: args,
			},
		})
	}

	if len(parts) == 0 {
		out.Candidates = []gemini.Candidate{fallbackCandidate()}
		return out
	}

	out.Candidates = []gemini.Candidate{{
		Content: gemini.Content{
			Role:  gemini.RoleModel,
			Parts: parts,
		},
		FinishReason:  MapFinishReason(choice.FinishReason),
		Index:         0,
		SafetyRatings: []string{},
	}}

	return out
}

// MapFinishReason maps upstream finish reasons onto the two values the CLI
// understands.
func MapFinishReason(reason string) string {
	if reason == "stop" {
		return gemini.FinishStop
	}
	return gemini.FinishOther
}

// FromStreamChunk translates one upstream delta into a Gemini-shaped
// streaming chunk carrying the delta text and cumulative token counts.
func FromStreamChunk(chunk *llm.StreamChunk, usage gemini.UsageMetadata) gemini.GenerateContentResponse {
	finish := ""
	if chunk.FinishReason != "" {
		finish = MapFinishReason(chunk.FinishReason)
	}

	return gemini.GenerateContentResponse{
		Candidates: []gemini.Candidate{{
			Content: gemini.Content{
				Role:  gemini.RoleModel,
				Parts: []gemini.Part{{Text: chunk.Delta}},
			},
			FinishReason:  finish,
			Index:         chunk.Index,
			SafetyRatings: []string{},
		}},
		UsageMetadata: &usage,
	}
}

func fallbackCandidate() gemini.Candidate {
	return gemini.Candidate{
		Content: gemini.Content{
			Role:  gemini.RoleModel,
			Parts: []gemini.Part{{Text: FallbackText}},
		},
		FinishReason:  gemini.FinishOther,
		Index:         0,
		SafetyRatings: []string{},
	}
}
