// Package google provides a model.ChatModel adapter for Google's Gemini
// API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowkit/wfgraph/graph/model"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ChatModel implements model.ChatModel for Google's Gemini API: safety
// filter handling, tool/function calling, and context cancellation.
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

// googleClient is the interface ChatModel drives; defaultClient wraps the
// real SDK, tests substitute a fake.
type googleClient interface {
	generateContent(ctx context.Context, req model.Request, modelName string) (model.Response, error)
}

// NewChatModel creates a Google ChatModel. An empty modelName defaults to
// "gemini-2.5-flash".
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey},
	}
}

// Generate implements model.ChatModel, translating safety-filter blocks
// into a SafetyFilterError callers can match with errors.As.
func (m *ChatModel) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	if req.Model == "" {
		req.Model = m.modelName
	}

	out, err := m.client.generateContent(ctx, req, req.Model)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return model.Response{}, handleSafetyFilterError(safetyErr)
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

// handleSafetyFilterError wraps a safety filter error with preserved
// context, available categories being HARM_CATEGORY_HATE_SPEECH,
// HARM_CATEGORY_SEXUALLY_EXPLICIT, HARM_CATEGORY_DANGEROUS_CONTENT, and
// HARM_CATEGORY_HARASSMENT.
func handleSafetyFilterError(err *SafetyFilterError) error {
	return err
}

// defaultClient wraps the official Google Gemini SDK client.
type defaultClient struct {
	apiKey string
}

func (c *defaultClient) generateContent(ctx context.Context, req model.Request, modelName string) (model.Response, error) {
	if c.apiKey == "" {
		return model.Response{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(modelName)
	if req.SystemPrompt != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		genModel.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		genModel.MaxOutputTokens = &maxTokens
	}
	if len(req.Tools) > 0 {
		genModel.Tools = convertTools(req.Tools)
	}

	parts := convertMessages(req.Messages)
	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return model.Response{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []model.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchemaToGenai(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchemaToGenai converts a JSON schema map to genai.Schema,
// handling top-level properties/required only (nested schemas are not
// recursively converted).
func convertSchemaToGenai(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema)
		for key, val := range props {
			if propMap, ok := val.(map[string]interface{}); ok {
				propSchema := &genai.Schema{}
				if typeStr, ok := propMap["type"].(string); ok {
					propSchema.Type = convertTypeString(typeStr)
				}
				if desc, ok := propMap["description"].(string); ok {
					propSchema.Description = desc
				}
				properties[key] = propSchema
			}
		}
		result.Properties = properties
	}

	if required, ok := schema["required"].([]string); ok {
		result.Required = required
	} else if required, ok := schema["required"].([]interface{}); ok {
		requiredStrs := make([]string, len(required))
		for i, v := range required {
			if s, ok := v.(string); ok {
				requiredStrs[i] = s
			}
		}
		result.Required = requiredStrs
	}
	return result
}

func convertResponse(resp *genai.GenerateContentResponse) model.Response {
	out := model.Response{}
	if resp.UsageMetadata != nil {
		out.TokensUsed = model.TokenUsage{
			Input:  int(resp.UsageMetadata.PromptTokenCount),
			Output: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	out.FinishReason = candidate.FinishReason.String()
	if candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  p.Name,
				Input: convertFunctionArgs(p.Args),
			})
		}
	}
	return out
}

func convertFunctionArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	return args
}

func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError represents a Google safety filter block, with Reason
// (e.g. "SAFETY") and Category (e.g. "HARM_CATEGORY_DANGEROUS_CONTENT").
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string { return e.category }

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string { return e.reason }
