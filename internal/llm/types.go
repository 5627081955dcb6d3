// Package llm provides the language-model collaborator: the chat client,
// the system-prompt builder and the decision parser. The model proposes a
// reply plus a list of actions; everything it returns is untrusted until
// the action validator has passed it.
package llm

import "context"

// ChatMessage is one turn of conversational history sent to the provider.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// CompletionRequest is a provider-agnostic completion request.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
}

// CompletionResponse is the raw provider output.
type CompletionResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the LLM collaborator contract.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
