package domain

import "context"

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Summarize sends the transcript under the given system prompt and
	// returns the completion text.
	Summarize(ctx context.Context, prompt, transcript string) (string, error)
	// Caption describes a single image. Only usable when SupportsVision
	// reports true for the active model.
	Caption(ctx context.Context, imageURL, systemPrompt string) (string, error)
	SupportsVision() bool
	Name() string
	Healthy(ctx context.Context) error
}

// Renderer turns digest text into an image and returns a reference to it
// (a URL or file:// path).
type Renderer interface {
	RenderToImage(ctx context.Context, text, templateName string) (string, error)
	Name() string
}
