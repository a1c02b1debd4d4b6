package llm

// Request shape we send to upstream (OpenAI-style).
type providerChatRequest struct {
	Model         string                 `json:"model"`
	Messages      []ChatMessage          `json:"messages"`
	Temperature   float32                `json:"temperature,omitempty"`
	TopP          float32                `json:"top_p,omitempty"`
	MaxTokens     int                    `json:"max_tokens,omitempty"`
	Stop          []string               `json:"stop,omitempty"`
	Stream        bool                   `json:"stream,omitempty"`
	StreamOptions *providerStreamOptions `json:"stream_options,omitempty"`
	Tools         []Tool                 `json:"tools,omitempty"`
	ToolChoice    string                 `json:"tool_choice,omitempty"`
}

// Asks the provider to append a final usage chunk to the stream.
type providerStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Choice for non-streaming responses.
type providerChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type providerUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type providerChatResponse struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []providerChatChoice `json:"choices"`
	Usage   *providerUsage       `json:"usage,omitempty"`
}

type providerErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// Chunk shape for streaming responses (each SSE "data:" event).
type providerStreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *providerUsage `json:"usage,omitempty"`
}
