// Package llm adapts chat-completion backends to a single tool-aware
// interface.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// ToolCall is one function invocation requested by the model. Arguments
// holds the raw JSON object produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Message struct {
	Role    string
	Content string
	// ToolCallID correlates a tool turn with the call it answers.
	ToolCallID string
	// Name is the tool name on tool turns.
	Name      string
	ToolCalls []ToolCall
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

type Request struct {
	Messages   []Message
	Tools      []Tool
	ToolChoice string
}

// Client produces the next assistant turn for a conversation.
type Client interface {
	Complete(ctx context.Context, req Request) (Message, error)
}

type Options struct {
	Provider string
	Model    string
	Timeout  time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Timeout:       cfg.LLM.Timeout,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
