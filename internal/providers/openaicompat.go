package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// compatEndpoint describes one OpenAI-wire-compatible vendor.
type compatEndpoint struct {
	baseURL      string
	defaultModel string
	apiKeyEnv    string
}

// compatEndpoints maps provider names to their chat-completions endpoints.
// Every entry speaks the OpenAI wire format with bearer-token auth, so the
// official SDK drives all of them; only the base URL and credentials differ.
var compatEndpoints = map[string]compatEndpoint{
	"openai":   {baseURL: "https://api.openai.com/v1", defaultModel: "gpt-4o-mini", apiKeyEnv: "OPENAI_API_KEY"},
	"deepseek": {baseURL: "https://api.deepseek.com/v1", defaultModel: "deepseek-chat", apiKeyEnv: "DEEPSEEK_API_KEY"},
	"qwen":     {baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", defaultModel: "qwen-plus", apiKeyEnv: "DASHSCOPE_API_KEY"},
	"grok":     {baseURL: "https://api.x.ai/v1", defaultModel: "grok-3-mini", apiKeyEnv: "XAI_API_KEY"},
	"kimi":     {baseURL: "https://api.moonshot.ai/v1", defaultModel: "moonshot-v1-8k", apiKeyEnv: "MOONSHOT_API_KEY"},
}

// CompatProviderNames returns the known OpenAI-wire-compatible provider
// names.
func CompatProviderNames() []string {
	names := make([]string, 0, len(compatEndpoints))
	for name := range compatEndpoints {
		names = append(names, name)
	}
	return names
}

// CompatConfig holds configuration for an OpenAI-wire-compatible client.
type CompatConfig struct {
	Name         string // provider name; must be a compatEndpoints key unless BaseURL is set
	APIKey       string
	APIKeyEnv    string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client // optional (tests)
}

// CompatClient implements ChatClient over any OpenAI-wire-compatible vendor
// using the official SDK pointed at the vendor's base URL.
type CompatClient struct {
	name         string
	apiKey       string
	apiKeyEnv    string
	defaultModel string
	client       openai.Client
}

// NewCompatClient creates a chat client for the named vendor.
func NewCompatClient(cfg CompatConfig) *CompatClient {
	ep := compatEndpoints[cfg.Name]
	if cfg.BaseURL == "" {
		cfg.BaseURL = ep.baseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = ep.defaultModel
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = ep.apiKeyEnv
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	return &CompatClient{
		name:         cfg.Name,
		apiKey:       cfg.APIKey,
		apiKeyEnv:    cfg.APIKeyEnv,
		defaultModel: cfg.DefaultModel,
		client:       client,
	}
}

// Name returns the provider identifier.
func (c *CompatClient) Name() string {
	return c.name
}

// Vision reports multimodal support. Image work routes to the Gemini client;
// the compat family is text-only here.
func (c *CompatClient) Vision() bool {
	return false
}

// Chat sends a chat-completions request.
func (c *CompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if c.apiKey == "" {
		err := fmt.Errorf("missing API key for provider %s: set %s", c.name, c.apiKeyEnv)
		return failedChat(c.name, requestID, "config_error", start, err), err
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens != 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONOnly {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			err := fmt.Errorf("provider %s does not accept inline images", c.name)
			return failedChat(c.name, requestID, "config_error", start, err), err
		}
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("%s chat request failed: %w", c.name, err)
		return failedChat(c.name, requestID, "http_error", start, err), err
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices in %s response", c.name)
		return failedChat(c.name, requestID, "empty_response", start, err), err
	}

	return &ChatResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Provider:         c.name,
		ModelUsed:        resp.Model,
		RequestID:        requestID,
		Success:          true,
		ExecutionTime:    time.Since(start),
	}, nil
}

// Verify interface
var _ ChatClient = (*CompatClient)(nil)
