package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockChatClient is a scripted ChatClient for tests. Responses are consumed
// in order; when the script runs out, the last entry repeats. A nil script
// echoes the final user message.
type MockChatClient struct {
	mu        sync.Mutex
	name      string
	vision    bool
	script    []MockResponse
	callIndex int
	Requests  []*ChatRequest
}

// MockResponse is one scripted reply.
type MockResponse struct {
	Content string
	Err     error
	Usage   int // prompt and completion token count reported for the call
}

// NewMockChatClient creates a mock with the given script.
func NewMockChatClient(name string, vision bool, script ...MockResponse) *MockChatClient {
	return &MockChatClient{name: name, vision: vision, script: script}
}

// Name returns the mock's provider name.
func (m *MockChatClient) Name() string { return m.name }

// Vision reports the configured multimodal flag.
func (m *MockChatClient) Vision() bool { return m.vision }

// Chat records the request and replies from the script.
func (m *MockChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return failedChat(m.name, req.RequestID, "cancelled", time.Now(), err), err
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var resp MockResponse
	if len(m.script) > 0 {
		idx := m.callIndex
		if idx >= len(m.script) {
			idx = len(m.script) - 1
		}
		resp = m.script[idx]
	} else {
		resp = MockResponse{Content: lastUserContent(req), Usage: 10}
	}
	m.callIndex++
	m.mu.Unlock()

	if resp.Err != nil {
		return failedChat(m.name, req.RequestID, "mock_error", time.Now(), resp.Err), resp.Err
	}

	usage := resp.Usage
	if usage == 0 {
		usage = 10
	}
	return &ChatResult{
		Content:          resp.Content,
		PromptTokens:     usage,
		CompletionTokens: usage,
		TotalTokens:      2 * usage,
		Provider:         m.name,
		ModelUsed:        "mock-model",
		RequestID:        req.RequestID,
		Success:          true,
	}, nil
}

// Calls returns how many requests the mock has served.
func (m *MockChatClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func lastUserContent(req *ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

// MockOCRClient is a scripted OCRClient for tests.
type MockOCRClient struct {
	PagesResult []OCRPage
	Err         error
	CallCount   int
}

// Name returns the mock's provider name.
func (m *MockOCRClient) Name() string { return "mock-ocr" }

// ProcessDocument replies with the scripted pages or error.
func (m *MockOCRClient) ProcessDocument(ctx context.Context, document []byte) (*OCRResult, error) {
	m.CallCount++
	if m.Err != nil {
		return &OCRResult{Success: false, ErrorMessage: m.Err.Error()}, m.Err
	}
	if len(m.PagesResult) == 0 {
		return &OCRResult{
			Success: true,
			Pages:   []OCRPage{{Index: 0, Markdown: fmt.Sprintf("mock ocr of %d bytes", len(document))}},
		}, nil
	}
	return &OCRResult{Success: true, Pages: m.PagesResult}, nil
}

// Verify interfaces
var (
	_ ChatClient = (*MockChatClient)(nil)
	_ OCRClient  = (*MockOCRClient)(nil)
)
