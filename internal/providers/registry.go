package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds references to chat clients and OCR clients. It supports
// config-driven instantiation and hot-reload, and provides thread-safe
// access.
type Registry struct {
	mu          sync.RWMutex
	chatClients map[string]ChatClient
	ocrClients  map[string]OCRClient
	logger      *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		chatClients: make(map[string]ChatClient),
		ocrClients:  make(map[string]OCRClient),
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterChat registers a chat client by name.
func (r *Registry) RegisterChat(name string, client ChatClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatClients[name] = client
	r.logger.Info("registered chat client", "name", name)
}

// RegisterOCR registers an OCR client by name.
func (r *Registry) RegisterOCR(name string, client OCRClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrClients[name] = client
	r.logger.Info("registered OCR client", "name", name)
}

// GetChat returns a chat client by name.
func (r *Registry) GetChat(name string) (ChatClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.chatClients[name]
	if !ok {
		return nil, fmt.Errorf("chat client not found: %s", name)
	}
	return client, nil
}

// GetOCR returns an OCR client by name.
func (r *Registry) GetOCR(name string) (OCRClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.ocrClients[name]
	if !ok {
		return nil, fmt.Errorf("OCR client not found: %s", name)
	}
	return client, nil
}

// ListChat returns all registered chat client names.
func (r *Registry) ListChat() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chatClients))
	for name := range r.chatClients {
		names = append(names, name)
	}
	return names
}

// ListOCR returns all registered OCR client names.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrClients))
	for name := range r.ocrClients {
		names = append(names, name)
	}
	return names
}

// RegistryConfig defines the providers to instantiate from config, with API
// keys already resolved.
type RegistryConfig struct {
	ChatProviders map[string]ChatProviderConfig
	OCRProviders  map[string]OCRProviderConfig
}

// ChatProviderConfig configures one chat provider entry.
type ChatProviderConfig struct {
	Type      string // "gemini" or "openai-compat"
	Model     string
	APIKey    string
	APIKeyEnv string // named in missing-key errors
	BaseURL   string
	Enabled   bool
}

// OCRProviderConfig configures one OCR provider entry.
type OCRProviderConfig struct {
	Type          string // "mistral-ocr"
	Model         string
	APIKey        string
	APIKeyEnv     string
	BaseURL       string
	IncludeImages bool
	Enabled       bool
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Enabled providers are registered even without an API key:
// the clients themselves short-circuit with an actionable missing-credential
// error before any network call, which is a better failure than "client not
// found".
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	for name, provCfg := range cfg.ChatProviders {
		if !provCfg.Enabled {
			continue
		}
		if client := createChatClient(name, provCfg); client != nil {
			r.chatClients[name] = client
		}
	}
	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.Enabled {
			continue
		}
		if client := createOCRClient(provCfg); client != nil {
			r.ocrClients[name] = client
		}
	}
	return r
}

// Reload updates the registry based on new configuration. Providers that are
// no longer configured are unregistered; providers with changed settings are
// recreated; unchanged entries are left alone.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantChat := make(map[string]bool)
	wantOCR := make(map[string]bool)

	for name, provCfg := range cfg.ChatProviders {
		if !provCfg.Enabled {
			continue
		}
		wantChat[name] = true

		existing, hasExisting := r.chatClients[name]
		if !hasExisting || needsChatUpdate(existing, provCfg) {
			if client := createChatClient(name, provCfg); client != nil {
				r.chatClients[name] = client
				r.logger.Info("reloaded chat client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.Enabled {
			continue
		}
		wantOCR[name] = true

		existing, hasExisting := r.ocrClients[name]
		if !hasExisting || needsOCRUpdate(existing, provCfg) {
			if client := createOCRClient(provCfg); client != nil {
				r.ocrClients[name] = client
				r.logger.Info("reloaded OCR client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.chatClients {
		if !wantChat[name] {
			delete(r.chatClients, name)
			r.logger.Info("unregistered chat client", "name", name)
		}
	}
	for name := range r.ocrClients {
		if !wantOCR[name] {
			delete(r.ocrClients, name)
			r.logger.Info("unregistered OCR client", "name", name)
		}
	}
}

// createChatClient creates a chat client based on provider type.
func createChatClient(name string, cfg ChatProviderConfig) ChatClient {
	switch cfg.Type {
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:       cfg.APIKey,
			APIKeyEnv:    cfg.APIKeyEnv,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
		})
	case "openai-compat":
		return NewCompatClient(CompatConfig{
			Name:         name,
			APIKey:       cfg.APIKey,
			APIKeyEnv:    cfg.APIKeyEnv,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
		})
	default:
		return nil
	}
}

// createOCRClient creates an OCR client based on provider type.
func createOCRClient(cfg OCRProviderConfig) OCRClient {
	switch cfg.Type {
	case "mistral-ocr":
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:        cfg.APIKey,
			APIKeyEnv:     cfg.APIKeyEnv,
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			IncludeImages: cfg.IncludeImages,
		})
	default:
		return nil
	}
}

// needsChatUpdate checks if a chat client needs to be recreated.
func needsChatUpdate(client ChatClient, cfg ChatProviderConfig) bool {
	switch c := client.(type) {
	case *GeminiClient:
		return c.apiKey != cfg.APIKey || c.defaultModel != cfg.Model
	case *CompatClient:
		return c.apiKey != cfg.APIKey || c.defaultModel != cfg.Model
	default:
		return true
	}
}

// needsOCRUpdate checks if an OCR client needs to be recreated.
func needsOCRUpdate(client OCRClient, cfg OCRProviderConfig) bool {
	switch c := client.(type) {
	case *MistralOCRClient:
		return c.apiKey != cfg.APIKey || c.model != cfg.Model || c.includeImages != cfg.IncludeImages
	default:
		return true
	}
}
