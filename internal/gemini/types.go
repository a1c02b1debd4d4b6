// Package gemini defines the wire types of the Gemini generateContent API
// surface that the proxy accepts and returns. Only the fields the CLI
// actually sends are modeled; unknown fields are ignored on decode.
package gemini

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Finish reasons the CLI understands.
const (
	FinishStop  = "STOP"
	FinishOther = "OTHER"
)

type GenerateContentRequest struct {
	Contents         []Content         `json:"contents,omitempty"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part holds either free text or a function call, never both.
type Part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type FunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type GenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

type Candidate struct {
	Content       Content  `json:"content"`
	FinishReason  string   `json:"finishReason,omitempty"`
	Index         int      `json:"index"`
	SafetyRatings []string `json:"safetyRatings"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// ErrorResponse is the envelope the CLI expects on failure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
