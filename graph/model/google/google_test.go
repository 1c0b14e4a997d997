package google

import (
	"context"
	"errors"
	"testing"

	"github.com/flowkit/wfgraph/graph/model"
)

func TestNewChatModel_DefaultsModelName(t *testing.T) {
	m := NewChatModel("test-api-key", "")
	if m == nil {
		t.Fatal("expected non-nil model")
	}
	if m.modelName != "gemini-2.5-flash" {
		t.Errorf("modelName = %q, want default", m.modelName)
	}
}

func TestChatModel_Generate_ReturnsResponse(t *testing.T) {
	mockClient := &mockGoogleClient{response: model.Response{Content: "Hello! I'm Gemini, a helpful AI assistant."}}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	out, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Hi there!"}}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Content != "Hello! I'm Gemini, a helpful AI assistant." {
		t.Errorf("Content = %q, want specific text", out.Content)
	}
	if mockClient.callCount != 1 {
		t.Errorf("expected 1 API call, got %d", mockClient.callCount)
	}
}

func TestChatModel_Generate_ToolCallsInResponse(t *testing.T) {
	mockClient := &mockGoogleClient{
		response: model.Response{ToolCalls: []model.ToolCall{{Name: "search", Input: map[string]interface{}{"query": "test"}}}},
	}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	req := model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "Search for test"}},
		Tools:    []model.ToolSpec{{Name: "search", Description: "Search the web"}},
	}

	out, err := m.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "search" {
		t.Fatalf("unexpected tool calls: %+v", out.ToolCalls)
	}
}

func TestChatModel_Generate_RespectsCancelledContext(t *testing.T) {
	mockClient := &mockGoogleClient{response: model.Response{Content: "Response"}}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Test"}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestChatModel_Generate_SafetyFilterBlock(t *testing.T) {
	mockClient := &mockGoogleClient{err: &SafetyFilterError{reason: "SAFETY", category: "HARM_CATEGORY_DANGEROUS_CONTENT"}}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Dangerous content"}}})

	var safetyErr *SafetyFilterError
	if !errors.As(err, &safetyErr) {
		t.Fatalf("expected SafetyFilterError type, got %T", err)
	}
	if safetyErr.Category() != "HARM_CATEGORY_DANGEROUS_CONTENT" {
		t.Errorf("Category() = %q, want specific category", safetyErr.Category())
	}
}

func TestChatModel_Generate_SafetyFilterAcrossCategories(t *testing.T) {
	categories := []string{
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
		"HARM_CATEGORY_HARASSMENT",
	}
	for _, category := range categories {
		mockClient := &mockGoogleClient{err: &SafetyFilterError{reason: "SAFETY", category: category}}
		m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

		_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Test"}}})

		var safetyErr *SafetyFilterError
		if !errors.As(err, &safetyErr) {
			t.Errorf("%s: expected SafetyFilterError, got %T", category, err)
		}
	}
}

func TestChatModel_Generate_PassesThroughNonSafetyErrors(t *testing.T) {
	mockClient := &mockGoogleClient{err: errors.New("API error: quota exceeded")}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Test"}}})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var safetyErr *SafetyFilterError
	if errors.As(err, &safetyErr) {
		t.Error("expected non-safety error, got SafetyFilterError")
	}
}

func TestChatModel_Generate_EmptyAPIKeyFails(t *testing.T) {
	m := NewChatModel("", "gemini-pro")
	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Test"}}})
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestHandleSafetyFilterError_PreservesCategory(t *testing.T) {
	err := &SafetyFilterError{reason: "SAFETY", category: "HARM_CATEGORY_HATE_SPEECH"}
	wrapped := handleSafetyFilterError(err)

	var safetyErr *SafetyFilterError
	if !errors.As(wrapped, &safetyErr) {
		t.Fatalf("expected SafetyFilterError, got %T", wrapped)
	}
	if safetyErr.Category() != "HARM_CATEGORY_HATE_SPEECH" {
		t.Errorf("Category() = %q, want preserved", safetyErr.Category())
	}
	if wrapped.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestChatModel_GenerateStreaming_DeliversContentAsSingleChunk(t *testing.T) {
	mockClient := &mockGoogleClient{response: model.Response{Content: "streamed"}}
	m := &ChatModel{client: mockClient, modelName: "gemini-pro"}

	ch, err := m.GenerateStreaming(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "Test"}}})
	if err != nil {
		t.Fatalf("GenerateStreaming: %v", err)
	}
	var got string
	for chunk := range ch {
		got += chunk.Content
	}
	if got != "streamed" {
		t.Errorf("got %q, want streamed", got)
	}
}

// mockGoogleClient is a fake googleClient for testing.
type mockGoogleClient struct {
	response  model.Response
	err       error
	callCount int
	lastReq   model.Request
}

func (m *mockGoogleClient) generateContent(_ context.Context, req model.Request, _ string) (model.Response, error) {
	m.callCount++
	m.lastReq = req

	if m.err != nil {
		return model.Response{}, m.err
	}
	return m.response, nil
}
