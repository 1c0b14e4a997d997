// Package anthropic provides a model.ChatModel adapter for Anthropic's
// Claude API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flowkit/wfgraph/graph/model"
)

// ChatModel implements model.ChatModel for Anthropic's Claude API:
// system-prompt extraction (Anthropic takes it as a separate parameter,
// not a message), tool/function calling, and error translation.
type ChatModel struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient is the interface ChatModel drives; defaultClient wraps
// the real SDK, tests substitute a fake.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, req model.Request, modelName string) (model.Response, error)
}

// NewChatModel creates an Anthropic ChatModel. An empty modelName defaults
// to "claude-sonnet-4-5-20250929".
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey},
	}
}

// Generate implements model.ChatModel. req.SystemPrompt and any
// model.RoleSystem messages are merged and sent as Anthropic's separate
// system parameter.
func (m *ChatModel) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	if req.Model == "" {
		req.Model = m.modelName
	}

	systemPrompt, conversation := extractSystemPrompt(req)
	out, err := m.client.createMessage(ctx, systemPrompt, conversation, req.Model)
	if err != nil {
		var anthropicErr *anthropicError
		if errors.As(err, &anthropicErr) {
			return model.Response{}, translateAnthropicError(anthropicErr)
		}
		return model.Response{}, err
	}
	return out, nil
}

// GenerateStreaming implements model.ChatModel by running Generate and
// delivering its result as a single chunk; the SDK's incremental streaming
// endpoint is not wired up (see DESIGN.md).
func (m *ChatModel) GenerateStreaming(ctx context.Context, req model.Request) (<-chan model.StreamChunk, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan model.StreamChunk, 1)
	ch <- model.StreamChunk{Content: resp.Content}
	close(ch)
	return ch, nil
}

// extractSystemPrompt separates req's SystemPrompt and any system-role
// messages from the conversation, concatenating them in order.
func extractSystemPrompt(req model.Request) (string, model.Request) {
	systemPrompt := req.SystemPrompt
	conversation := req
	conversation.Messages = nil

	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		} else {
			conversation.Messages = append(conversation.Messages, msg)
		}
	}
	return systemPrompt, conversation
}

// translateAnthropicError converts an Anthropic API error into a common
// format. Type information is currently preserved as-is.
func translateAnthropicError(err *anthropicError) error {
	return err
}

// defaultClient wraps the official Anthropic SDK client.
type defaultClient struct {
	apiKey string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, req model.Request, modelName string) (model.Response, error) {
	if c.apiKey == "" {
		return model.Response{}, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	maxTokens := int64(4096)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(modelName),
		Messages:  convertMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []model.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

func convertTools(tools []model.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			} else if req, ok := tool.Schema["required"].([]interface{}); ok {
				required = make([]string, len(req))
				for j, v := range req {
					if s, ok := v.(string); ok {
						required[j] = s
					}
				}
			}
		}

		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return result
}

func convertResponse(resp *anthropicsdk.Message) model.Response {
	out := model.Response{
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		TokensUsed: model.TokenUsage{
			Input:  int(resp.Usage.InputTokens),
			Output: int(resp.Usage.OutputTokens),
		},
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += b.Text
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  b.Name,
				Input: convertToolInput(b.Input),
			})
		}
	}
	return out
}

func convertToolInput(input interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"_raw": input}
}

// anthropicError represents an Anthropic API error.
type anthropicError struct {
	Type    string
	Message string
}

func (e *anthropicError) Error() string {
	return e.Type + ": " + e.Message
}
