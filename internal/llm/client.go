//go:generate mockgen -source ./client.go -destination=./mocks/client.go -package=mock_llm
package llm

import (
	"context"
	"errors"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

var ErrMissingAPIKey = errors.New("completion api key is not configured")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Params struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the first choice of a chat completion. Text is empty when the API returned
// no choices.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

type Client interface {
	Complete(ctx context.Context, messages []Message, params Params) (*Completion, error)
}
