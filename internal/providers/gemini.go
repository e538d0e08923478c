package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const (
	GeminiName    = "gemini"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel   = "gemini-2.0-flash"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	APIKeyEnv    string // env var named in missing-key errors
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// GeminiClient implements ChatClient against the Gemini REST API. Unlike the
// bearer-token providers, Gemini authenticates with an API key passed as a
// query parameter.
type GeminiClient struct {
	apiKey       string
	apiKeyEnv    string
	baseURL      string
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
	client       *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = GeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}

	return &GeminiClient{
		apiKey:       cfg.APIKey,
		apiKeyEnv:    cfg.APIKeyEnv,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Vision reports multimodal support.
func (c *GeminiClient) Vision() bool {
	return true
}

// Chat sends a generateContent request.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if c.apiKey == "" {
		err := fmt.Errorf("missing API key for provider %s: set %s", GeminiName, c.apiKeyEnv)
		return failedChat(GeminiName, requestID, "config_error", start, err), err
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	gReq := geminiRequest{}

	// Gemini has no system role in contents; system prompts ride in
	// systemInstruction.
	for _, m := range req.Messages {
		if m.Role == "system" {
			gReq.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: m.Content}},
			}
			continue
		}
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		content := geminiContent{Role: role}
		if m.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: m.Content})
		}
		for _, img := range m.Images {
			content.Parts = append(content.Parts, geminiPart{
				InlineData: &geminiInlineData{
					MIMEType: img.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		gReq.Contents = append(gReq.Contents, content)
	}

	gReq.GenerationConfig = &geminiGenerationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.JSONOnly {
		gReq.GenerationConfig.ResponseMIMEType = "application/json"
	}

	gResp, err := c.doRequest(ctx, model, gReq)
	if err != nil {
		return failedChat(GeminiName, requestID, "http_error", start, err), err
	}

	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		err := fmt.Errorf("no candidates in Gemini response")
		return failedChat(GeminiName, requestID, "empty_response", start, err), err
	}

	var content string
	for _, part := range gResp.Candidates[0].Content.Parts {
		content += part.Text
	}

	result := &ChatResult{
		Content:       content,
		Provider:      GeminiName,
		ModelUsed:     model,
		RequestID:     requestID,
		Success:       true,
		ExecutionTime: time.Since(start),
	}
	if gResp.UsageMetadata != nil {
		result.PromptTokens = gResp.UsageMetadata.PromptTokenCount
		result.CompletionTokens = gResp.UsageMetadata.CandidatesTokenCount
		result.TotalTokens = gResp.UsageMetadata.TotalTokenCount
	}
	return result, nil
}

// doRequest posts a generateContent call with retry on throttling and server
// errors.
func (c *GeminiClient) doRequest(ctx context.Context, model string, body geminiRequest) (*geminiResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, model, url.QueryEscape(c.apiKey))

	var gResp geminiResponse
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(bodyBytes))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				apiErr := fmt.Errorf("Gemini error (status %d): %s", resp.StatusCode, geminiErrorMessage(respBody))
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					return apiErr
				}
				return retry.Unrecoverable(apiErr)
			}

			if err := json.Unmarshal(respBody, &gResp); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &gResp, nil
}

func geminiErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(body)
}

// Gemini API types

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Verify interface
var _ ChatClient = (*GeminiClient)(nil)
