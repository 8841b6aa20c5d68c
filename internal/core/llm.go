package core

import "context"

// ChatTurn is one prior message of a conversation, in provider-neutral
// form.
type ChatTurn struct {
	Role string
	Text string
}

// CompletionRequest carries everything needed for one generation call.
// APIKey and Model are optional; empty values fall back to the
// process-wide defaults.
type CompletionRequest struct {
	APIKey            string
	Model             string
	SystemInstruction string
	History           []ChatTurn
	Message           string
}

// LLM abstracts the generative-language provider so services can be tested
// without network calls.
type LLM interface {
	// Complete returns the full response text in one shot.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// StreamComplete relays response chunks through emit as they arrive
	// and returns the accumulated text. On a mid-stream provider error the
	// text produced so far is returned alongside the error.
	StreamComplete(ctx context.Context, req CompletionRequest, emit func(chunk string) error) (string, error)
	// GenerateTitle asks the provider for a short chat title.
	GenerateTitle(ctx context.Context, apiKey, model, message string) (string, error)
	// AnalyzeImage runs a vision prompt over raw image bytes.
	AnalyzeImage(ctx context.Context, apiKey, mimeType string, image []byte, prompt string) (string, error)
}
