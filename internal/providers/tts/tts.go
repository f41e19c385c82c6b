package tts

import "context"

// Provider renders text to audio bytes (container format is provider-defined;
// the pipeline normalizes afterwards).
type Provider interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
	Close() error
}
