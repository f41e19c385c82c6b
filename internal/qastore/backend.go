package qastore

import (
	"context"

	"github.com/cultiflow/voicedesk/internal/models"
)

// Backend is one independent persistent store of Q&A pairs. Ids it returns
// are local to it and mean nothing to the other backend.
type Backend interface {
	Name() string

	// ListByLanguage returns every pair for a language; the store runs the
	// matching tiers over the full set so the semantics are identical across
	// backends.
	ListByLanguage(ctx context.Context, language string) ([]models.QAPair, error)

	// TouchUsage increments usage_count and stamps last_used for one pair.
	TouchUsage(ctx context.Context, id uint) error

	// Upsert inserts, or updates answer_text/updated_at when a pair with the
	// same (normalized question, language) key already exists.
	Upsert(ctx context.Context, question, answer, language string) (uint, error)

	Get(ctx context.Context, id uint) (*models.QAPair, error)
	List(ctx context.Context, language string, limit int) ([]models.QAPair, error)
	Delete(ctx context.Context, id uint) (bool, error)

	// DeleteAll removes every pair; used by reset-and-reseed.
	DeleteAll(ctx context.Context) (int64, error)
}
