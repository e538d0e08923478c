package prompts

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver holds embedded prompts registered by stage packages.
type Resolver struct {
	embedded map[string]EmbeddedPrompt
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewResolver creates a new prompt resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded: make(map[string]EmbeddedPrompt),
		logger:   logger,
	}
}

// Register registers an embedded prompt.
// This should be called during initialization by each stage package.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Compute hash if not provided
	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}

	// Extract variables if not provided
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Get returns the embedded prompt for a key.
func (r *Resolver) Get(key string) (*EmbeddedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prompt, ok := r.embedded[key]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}
	return &prompt, nil
}

// List returns all registered prompts sorted by key.
func (r *Resolver) List() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
