package ai

import "context"

type Message struct {
	Role    string
	Content string
	// Images are URLs or data URIs attached to a user message.
	Images []string
}

// ToolSpec is a function the model may call. Parameters is a JSON schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
