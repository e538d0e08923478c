package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	MistralOCRName    = "mistral-ocr"
	MistralOCRBaseURL = "https://api.mistral.ai/v1"
	MistralOCRModel   = "mistral-ocr-latest"
)

// MistralOCRConfig holds configuration for the Mistral OCR client.
type MistralOCRConfig struct {
	APIKey        string
	APIKeyEnv     string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	IncludeImages bool // include base64 image data in the response
}

// MistralOCRClient implements OCRClient using the Mistral OCR API. The API
// takes the whole document as a base64 data URL in a JSON body; there is no
// multipart upload.
type MistralOCRClient struct {
	apiKey        string
	apiKeyEnv     string
	baseURL       string
	model         string
	includeImages bool
	client        *http.Client
}

// NewMistralOCRClient creates a new Mistral OCR client.
func NewMistralOCRClient(cfg MistralOCRConfig) *MistralOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralOCRBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralOCRModel
	}
	if cfg.Timeout == 0 {
		// Whole-document OCR of a long paper can take minutes.
		cfg.Timeout = 500 * time.Second
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "MISTRAL_API_KEY"
	}

	return &MistralOCRClient{
		apiKey:        cfg.APIKey,
		apiKeyEnv:     cfg.APIKeyEnv,
		baseURL:       cfg.BaseURL,
		model:         cfg.Model,
		includeImages: cfg.IncludeImages,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (c *MistralOCRClient) Name() string {
	return MistralOCRName
}

// ProcessDocument extracts per-page markdown and images from a PDF.
func (c *MistralOCRClient) ProcessDocument(ctx context.Context, document []byte) (*OCRResult, error) {
	start := time.Now()

	if c.apiKey == "" {
		err := fmt.Errorf("missing API key for provider %s: set %s", MistralOCRName, c.apiKeyEnv)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	docBase64 := base64.StdEncoding.EncodeToString(document)

	reqBody := mistralOCRRequest{
		Model: c.model,
		Document: mistralDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + docBase64,
		},
		IncludeImageBase64: c.includeImages,
	}

	resp, err := c.doRequest(ctx, "/ocr", reqBody)
	if err != nil {
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	if len(resp.Pages) == 0 {
		err := fmt.Errorf("no pages in OCR response")
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	pages := make([]OCRPage, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		page := OCRPage{
			Index:    p.Index,
			Markdown: p.Markdown,
		}
		for _, img := range p.Images {
			extracted := ExtractedImage{ID: img.ID}
			if img.ImageBase64 != "" {
				extracted.MIMEType, extracted.Data, err = decodeDataURL(img.ImageBase64)
				if err != nil {
					// A bad image payload costs us one figure, not
					// the whole document.
					continue
				}
			}
			page.Images = append(page.Images, extracted)
		}
		pages = append(pages, page)
	}

	return &OCRResult{
		Success:       true,
		Pages:         pages,
		ExecutionTime: time.Since(start),
	}, nil
}

// decodeDataURL splits a "data:<mime>;base64,<payload>" string. Mistral also
// returns bare base64 for some documents; treat that as PNG.
func decodeDataURL(s string) (mime string, data []byte, err error) {
	mime = "image/png"
	payload := s
	if strings.HasPrefix(s, "data:") {
		rest := s[len("data:"):]
		sep := strings.Index(rest, ";base64,")
		if sep < 0 {
			return "", nil, fmt.Errorf("malformed data URL")
		}
		mime = rest[:sep]
		payload = rest[sep+len(";base64,"):]
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return mime, data, nil
}

// doRequest makes an HTTP request to the Mistral API.
func (c *MistralOCRClient) doRequest(ctx context.Context, path string, body any) (*mistralOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp mistralErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("Mistral OCR error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("Mistral OCR error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &ocrResp, nil
}

// Mistral OCR API types

type mistralOCRRequest struct {
	Model              string          `json:"model"`
	Document           mistralDocument `json:"document"`
	IncludeImageBase64 bool            `json:"include_image_base64,omitempty"`
}

type mistralDocument struct {
	Type        string `json:"type"` // "document_url" or "image_url"
	DocumentURL string `json:"document_url,omitempty"`
}

type mistralOCRResponse struct {
	Model string           `json:"model"`
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int               `json:"index"`
	Markdown string            `json:"markdown"`
	Images   []mistralOCRImage `json:"images,omitempty"`
}

type mistralOCRImage struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Verify interface
var _ OCRClient = (*MistralOCRClient)(nil)
