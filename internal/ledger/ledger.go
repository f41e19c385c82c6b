// Package ledger persists call and conversation records for analytics. It is
// deliberately thin: no business logic beyond aggregation queries.
package ledger

import (
	"context"
	"time"

	"github.com/cultiflow/voicedesk/internal/models"
)

// CallUpdate carries a partial update; nil fields are left untouched.
type CallUpdate struct {
	EndTime          *time.Time
	Status           *string
	DurationSeconds  *int64
	ResponseFilePath *string
}

// Statistics aggregates one calendar day of calls and conversations.
type Statistics struct {
	Date               string  `json:"date"`
	TotalCalls         int64   `json:"total_calls"`
	SuccessfulCalls    int64   `json:"successful_calls"`
	FailedCalls        int64   `json:"failed_calls"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	TotalConversations int64   `json:"total_conversations"`
	AvgProcessingTime  float64 `json:"avg_processing_time"`
	AvgSTTTime         float64 `json:"avg_stt_time"`
	AvgTTSTime         float64 `json:"avg_tts_time"`
}

type Ledger interface {
	CreateCall(ctx context.Context, callerID *string, extension, audioFilePath string) (uint, error)
	UpdateCall(ctx context.Context, callID uint, upd CallUpdate) error
	AddConversation(ctx context.Context, conv *models.Conversation) (uint, error)

	GetCall(ctx context.Context, callID uint) (*models.Call, error)
	GetCallConversations(ctx context.Context, callID uint) ([]models.Conversation, error)
	GetRecentCalls(ctx context.Context, limit int) ([]models.Call, error)
	GetStatistics(ctx context.Context, date string) (*Statistics, error)
}
