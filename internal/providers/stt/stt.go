package stt

import "context"

// Provider converts recorded speech to text. An empty transcript with a nil
// error means the service responded but heard nothing usable; callers treat
// both the same as "no transcript".
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
	Close() error
}
