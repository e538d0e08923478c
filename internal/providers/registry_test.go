package providers

import (
	"context"
	"testing"
	"time"
)

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ChatProviders: map[string]ChatProviderConfig{
			"gemini": {Type: "gemini", Model: "gemini-2.0-flash", APIKey: "gk", Enabled: true},
			"openai": {Type: "openai-compat", Model: "gpt-4o-mini", APIKey: "ok", Enabled: true},
			"grok":   {Type: "openai-compat", Model: "grok-3-mini", APIKey: "xk", Enabled: false},
		},
		OCRProviders: map[string]OCRProviderConfig{
			"mistral": {Type: "mistral-ocr", APIKey: "mk", Enabled: true},
		},
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(testRegistryConfig())

	if len(r.ListChat()) != 2 {
		t.Errorf("chat clients = %v, want gemini + openai", r.ListChat())
	}
	if len(r.ListOCR()) != 1 {
		t.Errorf("OCR clients = %v", r.ListOCR())
	}

	if _, err := r.GetChat("grok"); err == nil {
		t.Error("disabled provider should not be registered")
	}

	gemini, err := r.GetChat("gemini")
	if err != nil {
		t.Fatalf("GetChat(gemini) error = %v", err)
	}
	if !gemini.Vision() {
		t.Error("gemini client should be multimodal")
	}

	oa, err := r.GetChat("openai")
	if err != nil {
		t.Fatalf("GetChat(openai) error = %v", err)
	}
	if oa.Vision() {
		t.Error("compat client should not report vision")
	}
}

func TestRegistryMissingKeyStillRegistered(t *testing.T) {
	cfg := RegistryConfig{
		ChatProviders: map[string]ChatProviderConfig{
			"deepseek": {Type: "openai-compat", Enabled: true},
		},
	}
	r := NewRegistryFromConfig(cfg)

	client, err := r.GetChat("deepseek")
	if err != nil {
		t.Fatalf("keyless provider should still resolve: %v", err)
	}

	// The client itself reports the missing credential before any call.
	_, err = client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestRegistryReload(t *testing.T) {
	cfg := testRegistryConfig()
	r := NewRegistryFromConfig(cfg)

	original, _ := r.GetChat("gemini")

	// Change one provider's key, enable another, drop the OCR entry.
	cfg.ChatProviders["openai"] = ChatProviderConfig{
		Type: "openai-compat", Model: "gpt-4o", APIKey: "new-key", Enabled: true,
	}
	grok := cfg.ChatProviders["grok"]
	grok.Enabled = true
	cfg.ChatProviders["grok"] = grok
	cfg.OCRProviders = nil

	r.Reload(cfg)

	// Unchanged provider keeps its client instance.
	after, _ := r.GetChat("gemini")
	if original != after {
		t.Error("unchanged provider was recreated on reload")
	}

	if _, err := r.GetChat("grok"); err != nil {
		t.Errorf("newly enabled provider missing after reload: %v", err)
	}
	if _, err := r.GetOCR("mistral"); err == nil {
		t.Error("removed OCR provider still registered after reload")
	}

	oa, _ := r.GetChat("openai")
	compat, ok := oa.(*CompatClient)
	if !ok {
		t.Fatalf("unexpected client type %T", oa)
	}
	if compat.apiKey != "new-key" || compat.defaultModel != "gpt-4o" {
		t.Error("changed provider not recreated with new settings")
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("first call immediate", func(t *testing.T) {
		r := NewRateLimiter(time.Second)
		start := time.Now()
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if time.Since(start) > 100*time.Millisecond {
			t.Error("first Wait should not block")
		}
	})

	t.Run("spaces subsequent calls", func(t *testing.T) {
		r := NewRateLimiter(50 * time.Millisecond)
		r.Wait(context.Background())
		start := time.Now()
		r.Wait(context.Background())
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("second Wait returned after %v, want ~50ms", elapsed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		r := NewRateLimiter(time.Minute)
		r.Wait(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := r.Wait(ctx); err == nil {
			t.Error("expected context error")
		}
	})

	t.Run("zero interval never waits", func(t *testing.T) {
		r := NewRateLimiter(0)
		for i := 0; i < 3; i++ {
			if err := r.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if _, waited := r.Stats(); waited != 0 {
			t.Errorf("waited = %v, want 0", waited)
		}
	})
}
