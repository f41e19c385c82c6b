package qastore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cultiflow/voicedesk/internal/matcher"
	"github.com/cultiflow/voicedesk/internal/models"
)

// MemoryBackend is an in-memory Backend for tests and early development.
// Setting FailAll makes every operation error, simulating an unreachable
// backend.
type MemoryBackend struct {
	BackendName string
	FailAll     bool

	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.QAPair
}

func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{BackendName: name, nextID: 1, rows: map[uint]models.QAPair{}}
}

var errBackendDown = errors.New("backend unavailable")

func (m *MemoryBackend) Name() string { return m.BackendName }

func (m *MemoryBackend) ListByLanguage(ctx context.Context, language string) ([]models.QAPair, error) {
	if m.FailAll {
		return nil, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QAPair
	for _, r := range m.rows {
		if r.Language == language {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryBackend) TouchUsage(ctx context.Context, id uint) error {
	if m.FailAll {
		return errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	r.UsageCount++
	r.LastUsed = &now
	m.rows[id] = r
	return nil
}

func (m *MemoryBackend) Upsert(ctx context.Context, question, answer, language string) (uint, error) {
	if m.FailAll {
		return 0, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	norm := matcher.Normalize(question)
	now := time.Now().UTC()
	for id, r := range m.rows {
		if matcher.Normalize(r.QuestionText) == norm && r.Language == language {
			r.AnswerText = answer
			r.UpdatedAt = now
			m.rows[id] = r
			return id, nil
		}
	}
	id := m.nextID
	m.nextID++
	m.rows[id] = models.QAPair{
		ID:           id,
		QuestionText: question,
		AnswerText:   answer,
		Language:     language,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

func (m *MemoryBackend) Get(ctx context.Context, id uint) (*models.QAPair, error) {
	if m.FailAll {
		return nil, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *MemoryBackend) List(ctx context.Context, language string, limit int) ([]models.QAPair, error) {
	if m.FailAll {
		return nil, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QAPair
	for _, r := range m.rows {
		if language == "" || r.Language == language {
			out = append(out, r)
		}
	}
	sortPairs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id uint) (bool, error) {
	if m.FailAll {
		return false, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *MemoryBackend) DeleteAll(ctx context.Context) (int64, error) {
	if m.FailAll {
		return 0, errBackendDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.rows))
	m.rows = map[uint]models.QAPair{}
	return n, nil
}
