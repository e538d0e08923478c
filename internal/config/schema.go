package config

// Config holds papermill configuration.
// Stored at: {home}/config.yaml
type Config struct {
	ChatProviders map[string]ChatProviderCfg `mapstructure:"chat_providers" yaml:"chat_providers"`
	OCRProviders  map[string]OCRProviderCfg  `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	Pipeline      PipelineCfg                `mapstructure:"pipeline" yaml:"pipeline"`
}

// ChatProviderCfg configures a chat/completion provider.
type ChatProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "gemini", "openai-compat"
	Model     string `mapstructure:"model" yaml:"model"`           // default model name
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // supports ${ENV_VAR} syntax
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"` // named in missing-key errors
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`     // override vendor endpoint
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// OCRProviderCfg configures a document OCR provider.
type OCRProviderCfg struct {
	Type          string `mapstructure:"type" yaml:"type"` // "mistral-ocr"
	Model         string `mapstructure:"model" yaml:"model"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key"`
	APIKeyEnv     string `mapstructure:"api_key_env" yaml:"api_key_env"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	IncludeImages bool   `mapstructure:"include_images" yaml:"include_images"`
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PipelineCfg selects providers per role and tunes the stage runner.
type PipelineCfg struct {
	// OCRProvider names the OCR entry used by the ocr stage.
	OCRProvider string `mapstructure:"ocr_provider" yaml:"ocr_provider"`
	// Translator names the chat entry used by translate/polish.
	Translator string `mapstructure:"translator" yaml:"translator"`
	// Generator names the chat entry used by sections/blog/slides.
	Generator string `mapstructure:"generator" yaml:"generator"`
	// TargetLanguage is the translation target.
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language"`
	// UnitDelayMS is the fixed spacing between provider calls in a stage.
	UnitDelayMS int `mapstructure:"unit_delay_ms" yaml:"unit_delay_ms"`
	// ContextChars bounds the trailing context carried between units.
	ContextChars int `mapstructure:"context_chars" yaml:"context_chars"`
}

// DefaultConfig returns configuration with sensible defaults. Every known
// provider appears, disabled ones included, so the generated config file
// doubles as documentation of what can be switched on.
func DefaultConfig() *Config {
	return &Config{
		ChatProviders: map[string]ChatProviderCfg{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.0-flash",
				APIKey:    "${GEMINI_API_KEY}",
				APIKeyEnv: "GEMINI_API_KEY",
				Enabled:   true,
			},
			"openai": {
				Type:      "openai-compat",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				APIKeyEnv: "OPENAI_API_KEY",
				Enabled:   false,
			},
			"deepseek": {
				Type:      "openai-compat",
				Model:     "deepseek-chat",
				APIKey:    "${DEEPSEEK_API_KEY}",
				APIKeyEnv: "DEEPSEEK_API_KEY",
				Enabled:   false,
			},
			"qwen": {
				Type:      "openai-compat",
				Model:     "qwen-plus",
				APIKey:    "${DASHSCOPE_API_KEY}",
				APIKeyEnv: "DASHSCOPE_API_KEY",
				Enabled:   false,
			},
			"grok": {
				Type:      "openai-compat",
				Model:     "grok-3-mini",
				APIKey:    "${XAI_API_KEY}",
				APIKeyEnv: "XAI_API_KEY",
				Enabled:   false,
			},
			"kimi": {
				Type:      "openai-compat",
				Model:     "moonshot-v1-8k",
				APIKey:    "${MOONSHOT_API_KEY}",
				APIKeyEnv: "MOONSHOT_API_KEY",
				Enabled:   false,
			},
		},
		OCRProviders: map[string]OCRProviderCfg{
			"mistral": {
				Type:          "mistral-ocr",
				APIKey:        "${MISTRAL_API_KEY}",
				APIKeyEnv:     "MISTRAL_API_KEY",
				IncludeImages: true,
				Enabled:       true,
			},
		},
		Pipeline: PipelineCfg{
			OCRProvider:    "mistral",
			Translator:     "gemini",
			Generator:      "gemini",
			TargetLanguage: "Chinese",
			UnitDelayMS:    500,
			ContextChars:   200,
		},
	}
}

// GetChatProvider returns a chat provider config by name.
func (c *Config) GetChatProvider(name string) (ChatProviderCfg, bool) {
	cfg, ok := c.ChatProviders[name]
	return cfg, ok
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}
