package pipeline

import (
	"context"
	"fmt"

	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/providers"
)

// chatCall sends one request through the named chat client, records its
// usage against feature, and returns the response content. Transport and
// provider failures come back as errors; the caller decides whether the
// stage dies or degrades.
func (e *Env) chatCall(ctx context.Context, clientName, feature string, req *providers.ChatRequest) (string, error) {
	client, err := e.Registry.GetChat(clientName)
	if err != nil {
		return "", err
	}

	// All provider calls share one pacer: the first call goes immediately,
	// later ones keep the configured spacing, and nothing waits after the
	// last call of a stage.
	if err := e.Pacer.Wait(ctx); err != nil {
		return "", err
	}

	result, err := client.Chat(ctx, req)
	if result != nil && (result.Success || result.TotalTokens > 0) {
		// Tokens were consumed even if the call ultimately failed.
		e.Ledger.Record(result.Provider, result.ModelUsed, feature, ledger.Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
		})
	}
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("%s: %s", result.ErrorType, result.ErrorMessage)
	}
	return result.Content, nil
}

// visionClient returns the generator chat client if it accepts inline
// images, or nil if image analysis is unavailable for this job.
func (e *Env) visionClient() providers.ChatClient {
	client, err := e.Registry.GetChat(e.Options.Generator)
	if err != nil || !client.Vision() {
		return nil
	}
	return client
}
