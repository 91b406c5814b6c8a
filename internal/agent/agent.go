// Package agent answers conversational queries with an Azure OpenAI chat
// model that can call the remote MCP tools discovered at query time.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/mcp"
)

const systemPrompt = `You are an AI assistant with access to the user's personal document services.
Use the available tools to search the vector database and answer questions about
the user's documents. Prefer citing retrieved chunks over guessing. If no tool
returns relevant content, say so.`

// defaultMaxRounds bounds the completion/tool-call loop per query.
const defaultMaxRounds = 8

// toolBroker is the slice of the session manager the agent needs.
type toolBroker interface {
	ListToolDetails(ctx context.Context, server string) ([]mcp.ToolDetail, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) mcp.Result
}

// Agent drives the reasoning loop: completion, tool dispatch, repeat.
type Agent struct {
	client     *azopenai.Client
	deployment string
	broker     toolBroker
	servers    []string
	maxRounds  int
}

// New builds the chat client from the Azure completion settings and wires in
// the tool servers whose tools the model may call.
func New(azure config.AzureOpenAI, broker toolBroker, servers []string) (*Agent, error) {
	if !azure.Complete() {
		return nil, errors.New("azure openai completion settings are incomplete")
	}
	client, err := azopenai.NewClientWithKeyCredential(azure.Endpoint, azcore.NewKeyCredential(azure.APIKey), nil)
	if err != nil {
		return nil, fmt.Errorf("create azure openai client: %w", err)
	}
	return &Agent{
		client:     client,
		deployment: azure.Deployment,
		broker:     broker,
		servers:    servers,
		maxRounds:  defaultMaxRounds,
	}, nil
}

// Answer runs one query through the reasoning loop and returns the model's
// final natural-language answer.
func (a *Agent) Answer(ctx context.Context, query string) (string, error) {
	defs, route, err := a.discoverTools(ctx)
	if err != nil {
		return "", err
	}

	messages := []azopenai.ChatRequestMessageClassification{
		&azopenai.ChatRequestSystemMessage{Content: azopenai.NewChatRequestSystemMessageContent(systemPrompt)},
		&azopenai.ChatRequestUserMessage{Content: azopenai.NewChatRequestUserMessageContent(query)},
	}

	for round := 0; round < a.maxRounds; round++ {
		opts := azopenai.ChatCompletionsOptions{
			DeploymentName: &a.deployment,
			Messages:       messages,
			Temperature:    to.Ptr(float32(0.1)),
		}
		if len(defs) > 0 {
			opts.Tools = defs
		}

		resp, err := a.client.GetChatCompletions(ctx, opts, nil)
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return "", errors.New("no completion received")
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			if msg.Content == nil {
				return "", errors.New("completion message has no content")
			}
			return *msg.Content, nil
		}

		assistant := &azopenai.ChatRequestAssistantMessage{ToolCalls: msg.ToolCalls}
		if msg.Content != nil {
			assistant.Content = azopenai.NewChatRequestAssistantMessageContent(*msg.Content)
		}
		messages = append(messages, assistant)

		for _, raw := range msg.ToolCalls {
			call, ok := raw.(*azopenai.ChatCompletionsFunctionToolCall)
			if !ok || call.Function == nil || call.Function.Name == nil {
				continue
			}
			result := a.dispatch(ctx, route, *call.Function.Name, call.Function.Arguments)
			body, _ := json.Marshal(result)
			messages = append(messages, &azopenai.ChatRequestToolMessage{
				ToolCallID: call.ID,
				Content:    azopenai.NewChatRequestToolMessageContent(string(body)),
			})
		}
	}

	return "", fmt.Errorf("no final answer after %d tool rounds", a.maxRounds)
}

// dispatch routes one model tool call to the owning server. Failures stay in
// the tagged result so the model sees them as data and can recover.
func (a *Agent) dispatch(ctx context.Context, route map[string]string, name string, rawArgs *string) mcp.Result {
	server, ok := route[name]
	if !ok {
		return mcp.Errorf("tool %q is not available", name)
	}
	args := map[string]any{}
	if rawArgs != nil && *rawArgs != "" {
		if err := json.Unmarshal([]byte(*rawArgs), &args); err != nil {
			return mcp.Errorf("invalid arguments for %s: %v", name, err)
		}
	}
	slog.Info("agent tool call", "server", server, "tool", name)
	return a.broker.CallTool(ctx, server, name, args)
}

// discoverTools collects tool definitions from every configured server and a
// tool-name-to-server routing table. Unreachable servers are skipped so the
// agent can still answer from the remaining ones.
func (a *Agent) discoverTools(ctx context.Context) ([]azopenai.ChatCompletionsToolDefinitionClassification, map[string]string, error) {
	var details []mcp.ToolDetail
	for _, server := range a.servers {
		items, err := a.broker.ListToolDetails(ctx, server)
		if err != nil {
			slog.Warn("skipping unreachable tool server", "server", server, "error", err)
			continue
		}
		details = append(details, items...)
	}
	defs, route := toolDefinitions(details)
	return defs, route, nil
}

// toolDefinitions converts MCP tool details into chat function definitions.
// When two servers advertise the same tool name the first one wins.
func toolDefinitions(details []mcp.ToolDetail) ([]azopenai.ChatCompletionsToolDefinitionClassification, map[string]string) {
	defs := make([]azopenai.ChatCompletionsToolDefinitionClassification, 0, len(details))
	route := map[string]string{}
	for _, d := range details {
		if _, exists := route[d.Name]; exists {
			continue
		}
		route[d.Name] = d.Server
		params := []byte(d.InputSchema)
		if len(params) == 0 || string(params) == "null" {
			params = []byte(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, &azopenai.ChatCompletionsFunctionToolDefinition{
			Type: to.Ptr("function"),
			Function: &azopenai.ChatCompletionsFunctionToolDefinitionFunction{
				Name:        to.Ptr(d.Name),
				Description: to.Ptr(d.Description),
				Parameters:  params,
			},
		})
	}
	return defs, route
}
