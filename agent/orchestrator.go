// Package agent routes a query either to the tool registry or to
// retrieval-augmented generation and produces the final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/llm"
)

const (
	decisionPrompt  = "You are a helpful voice assistant. Use tools for weather/stocks. For other queries, use the provided context."
	groundingPrompt = "Answer based on the context below. If unsure, say so.\n\nContext:\n"

	DefaultRetrievalK = 3
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Retriever returns the joined text of the k chunks nearest to query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// Tools lists callable functions and runs them. Invoke reports failures
// inside its payload.
type Tools interface {
	Definitions() []llm.Tool
	Invoke(ctx context.Context, name, arguments string) string
}

type Result struct {
	Answer  string
	Metrics Metrics
}

type Orchestrator struct {
	llm       llm.Client
	retriever Retriever
	tools     Tools
	k         int
	logger    *zap.Logger
}

type Option func(*Orchestrator)

// WithRetrievalK sets how many chunks ground a RAG answer.
func WithRetrievalK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.k = k
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(client llm.Client, retriever Retriever, tools Tools, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:       client,
		retriever: retriever,
		tools:     tools,
		k:         DefaultRetrievalK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process answers query. One decision call picks the path: any tool call
// runs the tools and asks the model again without tools, otherwise the
// answer is grounded on retrieved context. At most two generation calls are
// made.
func (o *Orchestrator) Process(ctx context.Context, query string) (Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if o.llm == nil {
		return Result{}, fmt.Errorf("llm client is not configured")
	}

	conv := NewConversation(
		llm.Message{Role: llm.RoleSystem, Content: decisionPrompt},
		llm.Message{Role: llm.RoleUser, Content: query},
	)

	var defs []llm.Tool
	if o.tools != nil {
		defs = o.tools.Definitions()
	}

	decision, err := o.llm.Complete(ctx, llm.Request{
		Messages:   conv.Messages(),
		Tools:      defs,
		ToolChoice: llm.ToolChoiceAuto,
	})
	if err != nil {
		return Result{}, fmt.Errorf("decide route: %w: %w", domain.ErrUpstream, err)
	}

	var (
		answer  string
		metrics Metrics
	)
	if len(decision.ToolCalls) > 0 && o.tools != nil {
		metrics.Path = PathToolCall
		answer, err = o.answerWithTools(ctx, conv, decision)
	} else {
		metrics.Path = PathRAG
		answer, metrics.RetrievalTime, err = o.answerWithContext(ctx, query)
	}
	if err != nil {
		return Result{}, err
	}

	metrics.TotalTime = time.Since(start)
	o.logger.Info("query answered",
		zap.String("path", metrics.Path),
		zap.Duration("duration", metrics.TotalTime),
	)
	return Result{Answer: answer, Metrics: metrics}, nil
}

func (o *Orchestrator) answerWithTools(ctx context.Context, conv Conversation, decision llm.Message) (string, error) {
	decision.Role = llm.RoleAssistant
	conv = conv.Append(decision)

	for _, call := range decision.ToolCalls {
		o.logger.Debug("invoking tool", zap.String("tool", call.Name), zap.String("call_id", call.ID))
		payload := o.tools.Invoke(ctx, call.Name, call.Arguments)
		conv = conv.Append(llm.Message{
			Role:       llm.RoleTool,
			Content:    payload,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}

	final, err := o.llm.Complete(ctx, llm.Request{Messages: conv.Messages()})
	if err != nil {
		return "", fmt.Errorf("generate tool answer: %w: %w", domain.ErrUpstream, err)
	}
	return final.Content, nil
}

func (o *Orchestrator) answerWithContext(ctx context.Context, query string) (string, time.Duration, error) {
	retrievalStart := time.Now()
	var grounding string
	if o.retriever != nil {
		text, err := o.retriever.Retrieve(ctx, query, o.k)
		if err != nil {
			o.logger.Warn("retrieval failed, answering without context", zap.Error(err))
		} else {
			grounding = text
		}
	}
	retrievalTime := time.Since(retrievalStart)

	conv := NewConversation(
		llm.Message{Role: llm.RoleSystem, Content: groundingPrompt + grounding},
		llm.Message{Role: llm.RoleUser, Content: query},
	)
	final, err := o.llm.Complete(ctx, llm.Request{Messages: conv.Messages()})
	if err != nil {
		return "", retrievalTime, fmt.Errorf("generate grounded answer: %w: %w", domain.ErrUpstream, err)
	}
	return final.Content, retrievalTime, nil
}
