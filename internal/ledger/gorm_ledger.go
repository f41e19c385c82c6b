package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cultiflow/voicedesk/internal/models"
)

type gormLedger struct {
	db *gorm.DB
}

// New creates the calls/conversations schema idempotently and returns a
// Ledger over the given database.
func New(db *gorm.DB) (Ledger, error) {
	if err := db.AutoMigrate(&models.Call{}, &models.Conversation{}); err != nil {
		return nil, err
	}
	return &gormLedger{db: db}, nil
}

func (l *gormLedger) CreateCall(ctx context.Context, callerID *string, extension, audioFilePath string) (uint, error) {
	row := models.Call{
		CallerID:      callerID,
		Extension:     extension,
		StartTime:     time.Now().UTC(),
		Status:        models.CallStatusActive,
		AudioFilePath: audioFilePath,
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (l *gormLedger) UpdateCall(ctx context.Context, callID uint, upd CallUpdate) error {
	fields := map[string]any{}
	if upd.EndTime != nil {
		fields["end_time"] = *upd.EndTime
	}
	if upd.Status != nil {
		fields["status"] = *upd.Status
	}
	if upd.DurationSeconds != nil {
		fields["duration_seconds"] = *upd.DurationSeconds
	}
	if upd.ResponseFilePath != nil {
		fields["response_file_path"] = *upd.ResponseFilePath
	}
	if len(fields) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Model(&models.Call{}).
		Where("call_id = ?", callID).
		Updates(fields).Error
}

func (l *gormLedger) AddConversation(ctx context.Context, conv *models.Conversation) (uint, error) {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(conv).Error; err != nil {
		return 0, err
	}
	return conv.ID, nil
}

func (l *gormLedger) GetCall(ctx context.Context, callID uint) (*models.Call, error) {
	var row models.Call
	err := l.db.WithContext(ctx).Where("call_id = ?", callID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (l *gormLedger) GetCallConversations(ctx context.Context, callID uint) ([]models.Conversation, error) {
	var rows []models.Conversation
	err := l.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (l *gormLedger) GetRecentCalls(ctx context.Context, limit int) ([]models.Call, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Call
	err := l.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (l *gormLedger) GetStatistics(ctx context.Context, date string) (*Statistics, error) {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	out := Statistics{Date: date}

	var callAgg struct {
		Total       int64
		Successful  int64
		Failed      int64
		AvgDuration *float64
	}
	err := l.db.WithContext(ctx).Model(&models.Call{}).
		Select(
			"COUNT(*) AS total",
			"SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS successful",
			"SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed",
			"AVG(duration_seconds) AS avg_duration",
		).
		Where("DATE(start_time) = ?", date).
		Scan(&callAgg).Error
	if err != nil {
		return nil, err
	}
	out.TotalCalls = callAgg.Total
	out.SuccessfulCalls = callAgg.Successful
	out.FailedCalls = callAgg.Failed
	if callAgg.AvgDuration != nil {
		out.AvgDurationSeconds = *callAgg.AvgDuration
	}

	var convAgg struct {
		Total    int64
		AvgTotal *float64
		AvgSTT   *float64
		AvgTTS   *float64
	}
	err = l.db.WithContext(ctx).Model(&models.Conversation{}).
		Select(
			"COUNT(*) AS total",
			"AVG(total_processing_time) AS avg_total",
			"AVG(stt_processing_time) AS avg_stt",
			"AVG(tts_processing_time) AS avg_tts",
		).
		Where("DATE(created_at) = ?", date).
		Scan(&convAgg).Error
	if err != nil {
		return nil, err
	}
	out.TotalConversations = convAgg.Total
	if convAgg.AvgTotal != nil {
		out.AvgProcessingTime = *convAgg.AvgTotal
	}
	if convAgg.AvgSTT != nil {
		out.AvgSTTTime = *convAgg.AvgSTT
	}
	if convAgg.AvgTTS != nil {
		out.AvgTTSTime = *convAgg.AvgTTS
	}
	return &out, nil
}
