// Package providers implements the client adapters for every external model
// API the pipeline calls: OpenAI-wire-compatible chat providers, the Gemini
// multimodal API, and the Mistral document-OCR API. All adapters surface the
// same request/result contract so pipeline stages never see a wire format.
package providers

import (
	"context"
	"time"
)

// ChatClient is the uniform interface for text and multimodal completion.
type ChatClient interface {
	// Chat sends a completion request. Transport failures are reported in
	// the result's Success/ErrorMessage fields as well as the error return;
	// the result is never nil.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the provider identifier (e.g. "openai", "gemini").
	Name() string

	// Vision reports whether the client accepts inline images.
	Vision() bool
}

// OCRClient converts a source document into per-page markdown plus extracted
// images. Separate from ChatClient because the request shape (a whole
// document, not a prompt) and result shape (pages, not text) differ.
type OCRClient interface {
	// Name returns the provider identifier (e.g. "mistral-ocr").
	Name() string

	// ProcessDocument runs OCR over an entire document (PDF bytes).
	ProcessDocument(ctx context.Context, document []byte) (*OCRResult, error)
}

// ImagePart is one inline image in a multimodal message.
type ImagePart struct {
	MIMEType string // e.g. "image/png"
	Data     []byte // raw bytes; adapters base64-encode on the wire
}

// Message is one chat message. A message with Images set is multimodal and
// may only be sent to a client whose Vision() is true.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
	Images  []ImagePart
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	Messages []Message

	// Model overrides the client default when set.
	Model string

	Temperature float64
	MaxTokens   int

	// JSONOnly asks the provider for a JSON-object response where the wire
	// format supports it. Callers still parse defensively.
	JSONOnly bool

	// RequestID tags the call for logging; generated when empty.
	RequestID string
}

// ChatResult is the complete response from one provider call.
type ChatResult struct {
	Content string

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	Provider  string
	ModelUsed string
	RequestID string

	ExecutionTime time.Duration

	Success      bool
	ErrorType    string
	ErrorMessage string
}

// OCRPage is one page of OCR output.
type OCRPage struct {
	Index    int
	Markdown string
	Images   []ExtractedImage
}

// ExtractedImage is one image the OCR provider pulled out of the document.
type ExtractedImage struct {
	ID       string
	MIMEType string
	Data     []byte
}

// OCRResult is the response from a document OCR call.
type OCRResult struct {
	Success bool
	Pages   []OCRPage

	ExecutionTime time.Duration
	ErrorMessage  string
}

// failedChat builds the uniform failure result adapters return alongside the
// error value.
func failedChat(provider, requestID, errType string, start time.Time, err error) *ChatResult {
	return &ChatResult{
		Provider:      provider,
		RequestID:     requestID,
		Success:       false,
		ErrorType:     errType,
		ErrorMessage:  err.Error(),
		ExecutionTime: time.Since(start),
	}
}
