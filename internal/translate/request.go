// Package translate converts between the Gemini generateContent schema and
// the OpenAI chat-completions schema. Every function here is total: missing
// or malformed optional fields degrade to defined defaults instead of
// returning errors, because the calling CLI cannot handle a half-translated
// failure mid-session.
package translate

import (
	"fmt"
	"strings"

	"llmbridge/internal/gemini"
	"llmbridge/internal/llm"
)

// Defaults applied when generationConfig omits a field.
const (
	DefaultTemperature     = 0.1
	DefaultTopP            = 1.0
	DefaultMaxOutputTokens = 4096
)

// ToChatRequest translates an inbound Gemini request into an upstream chat
// request for the given model. A missing contents list yields an empty
// message list, not an error.
func ToChatRequest(req gemini.GenerateContentRequest, model string) llm.ChatRequest {
	out := llm.ChatRequest{
		Model:       model,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxOutputTokens,
	}

	if req.SystemInstruction != nil {
		if text := flattenParts(req.SystemInstruction.Parts); text != "" {
			out.Messages = append(out.Messages, llm.ChatMessage{
				Role:    llm.RoleSystem,
				Content: text,
			})
		}
	}

	for _, content := range req.Contents {
		role, ok := mapRole(content.Role)
		if !ok {
			continue
		}

		text := flattenParts(content.Parts)
		if text == "" {
			continue
		}

		out.Messages = append(out.Messages, llm.ChatMessage{
			Role:    role,
			Content: text,
		})
	}

	if gc := req.GenerationConfig; gc != nil {
		if gc.Temperature != nil {
			out.Temperature = *gc.Temperature
		}
		if gc.TopP != nil {
			out.TopP = *gc.TopP
		}
		if gc.MaxOutputTokens != nil {
			out.MaxTokens = *gc.MaxOutputTokens
		}
	}

	for _, tool := range req.Tools {
		for _, decl := range tool.FunctionDeclarations {
			name := decl.Name
			if name == "" {
				name = "unknown"
			}
			out.Tools = append(out.Tools, llm.Tool{
				Type: "function",
				Function: llm.ToolFunction{
					Name:        name,
					Description: decl.Description,
					Parameters:  decl.Parameters,
				},
			})
		}
	}
	if len(out.Tools) > 0 {
		out.ToolChoice = "auto"
	}

	return out
}

// mapRole maps Gemini roles onto upstream roles. model<->assistant is a
// bijection; anything else is dropped.
func mapRole(role string) (string, bool) {
	switch role {
	case gemini.RoleUser:
		return llm.RoleUser, true
	case gemini.RoleModel:
		return llm.RoleAssistant, true
	default:
		return "", false
	}
}

// flattenParts concatenates the text of all parts. Function-call parts are
// rendered as a bracketed marker so the upstream model sees that a call
// happened in the transcript.
func flattenParts(parts []gemini.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			name := part.FunctionCall.Name
			if name == "" {
				name = "unknown"
			}
			fmt.Fprintf(&b, "\n[Function Call: %s]", name)
		}
	}
	return strings.TrimSpace(b.String())
}
