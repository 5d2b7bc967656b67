// Package mcpserver exposes the agent and its tools to MCP clients over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/agent"
	"github.com/aslamsikder/VoiceRAG-Agent-System/llm"
)

const (
	serverName    = "VoiceRAG Agent"
	serverVersion = "0.1.0"
	askTool       = "ask"
)

// Agent answers a text query.
type Agent interface {
	Process(ctx context.Context, query string) (agent.Result, error)
}

// Tools is the registry whose functions are re-exported verbatim.
type Tools interface {
	Definitions() []llm.Tool
	Invoke(ctx context.Context, name, arguments string) string
}

type Handlers struct {
	agent  Agent
	tools  Tools
	logger *zap.Logger
}

type askResult struct {
	Answer  string        `json:"answer"`
	Metrics agent.Metrics `json:"metrics"`
}

// New builds an MCP server offering "ask" plus every registry tool.
func New(a Agent, tools Tools, logger *zap.Logger) (*server.MCPServer, *Handlers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{agent: a, tools: tools, logger: logger}

	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(askTool,
		mcp.WithDescription("Ask the voice agent a question. Weather and stock questions use live tools, everything else is answered from the ingested documents."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
	), h.Ask)

	if tools != nil {
		for _, def := range tools.Definitions() {
			tool, err := toMCPTool(def)
			if err != nil {
				return nil, nil, err
			}
			s.AddTool(tool, h.invoke(def.Name))
		}
	}
	return s, h, nil
}

// Serve runs the server on stdin/stdout until ctx is cancelled or the
// client disconnects.
func Serve(ctx context.Context, s *server.MCPServer, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s)
	}()

	select {
	case <-ctx.Done():
		if logger != nil {
			logger.Info("shutdown signal received, stopping mcp server")
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}

func (h *Handlers) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	res, err := h.agent.Process(ctx, question)
	if err != nil {
		h.logger.Warn("ask failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	out, err := json.Marshal(askResult{Answer: res.Answer, Metrics: res.Metrics})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// invoke forwards a call to the registry. Registry failures already come
// back as {"error": ...} payloads and are flagged as tool errors.
func (h *Handlers) invoke(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		payload := h.tools.Invoke(ctx, name, string(args))

		var probe struct {
			Error string `json:"error"`
		}
		if json.Unmarshal([]byte(payload), &probe) == nil && probe.Error != "" {
			return mcp.NewToolResultError(payload), nil
		}
		return mcp.NewToolResultText(payload), nil
	}
}

func toMCPTool(def llm.Tool) (mcp.Tool, error) {
	props := make(map[string]any, len(def.Parameters.Properties))
	for name, prop := range def.Parameters.Properties {
		raw, err := json.Marshal(prop)
		if err != nil {
			return mcp.Tool{}, fmt.Errorf("encode schema for %s.%s: %w", def.Name, name, err)
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			return mcp.Tool{}, fmt.Errorf("decode schema for %s.%s: %w", def.Name, name, err)
		}
		props[name] = schema
	}

	return mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   def.Parameters.Required,
		},
	}, nil
}
