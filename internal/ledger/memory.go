package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cultiflow/voicedesk/internal/models"
)

// Memory is an in-memory Ledger for tests.
type Memory struct {
	mu         sync.Mutex
	nextCallID uint
	nextConvID uint
	Calls      map[uint]*models.Call
	Convs      []models.Conversation
}

func NewMemory() *Memory {
	return &Memory{nextCallID: 1, nextConvID: 1, Calls: map[uint]*models.Call{}}
}

func (m *Memory) CreateCall(ctx context.Context, callerID *string, extension, audioFilePath string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextCallID
	m.nextCallID++
	m.Calls[id] = &models.Call{
		ID:            id,
		CallerID:      callerID,
		Extension:     extension,
		StartTime:     time.Now().UTC(),
		Status:        models.CallStatusActive,
		AudioFilePath: audioFilePath,
	}
	return id, nil
}

func (m *Memory) UpdateCall(ctx context.Context, callID uint, upd CallUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Calls[callID]
	if !ok {
		return nil
	}
	if upd.EndTime != nil {
		c.EndTime = upd.EndTime
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.DurationSeconds != nil {
		c.DurationSeconds = upd.DurationSeconds
	}
	if upd.ResponseFilePath != nil {
		c.ResponseFilePath = upd.ResponseFilePath
	}
	return nil
}

func (m *Memory) AddConversation(ctx context.Context, conv *models.Conversation) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv.ID = m.nextConvID
	m.nextConvID++
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	m.Convs = append(m.Convs, *conv)
	return conv.ID, nil
}

func (m *Memory) GetCall(ctx context.Context, callID uint) (*models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Calls[callID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) GetCallConversations(ctx context.Context, callID uint) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.Convs {
		if c.CallID == callID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetRecentCalls(ctx context.Context, limit int) ([]models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]models.Call, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetStatistics(ctx context.Context, date string) (*Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	out := Statistics{Date: date}
	var durSum float64
	var durN int64
	for _, c := range m.Calls {
		if c.StartTime.UTC().Format("2006-01-02") != date {
			continue
		}
		out.TotalCalls++
		switch c.Status {
		case models.CallStatusCompleted:
			out.SuccessfulCalls++
		case models.CallStatusFailed:
			out.FailedCalls++
		}
		if c.DurationSeconds != nil {
			durSum += float64(*c.DurationSeconds)
			durN++
		}
	}
	if durN > 0 {
		out.AvgDurationSeconds = durSum / float64(durN)
	}
	var totalSum, sttSum, ttsSum float64
	for _, cv := range m.Convs {
		if cv.CreatedAt.UTC().Format("2006-01-02") != date {
			continue
		}
		out.TotalConversations++
		totalSum += cv.TotalProcessingTime
		sttSum += cv.STTProcessingTime
		ttsSum += cv.TTSProcessingTime
	}
	if out.TotalConversations > 0 {
		n := float64(out.TotalConversations)
		out.AvgProcessingTime = totalSum / n
		out.AvgSTTTime = sttSum / n
		out.AvgTTSTime = ttsSum / n
	}
	return &out, nil
}
