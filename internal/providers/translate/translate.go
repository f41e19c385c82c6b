package translate

import "context"

// Provider translates text between a fixed language pair, tagged like
// "tw-en". Translation is always best-effort in this system: a failure means
// the caller falls through with the untranslated text.
type Provider interface {
	Translate(ctx context.Context, text, pair string) (string, error)
	Close() error
}
