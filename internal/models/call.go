package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CallStatusActive    = "active"
	CallStatusCompleted = "completed"
	CallStatusFailed    = "failed"
)

// Call is one incoming audio query. Created with status "active" and updated
// exactly once to a terminal status when the pipeline finishes.
type Call struct {
	ID               uint           `gorm:"column:call_id;primaryKey;autoIncrement" json:"call_id"`
	CallerID         *string        `gorm:"column:caller_id;type:text" json:"caller_id,omitempty"`
	Extension        string         `gorm:"column:extension;type:text" json:"extension"`
	StartTime        time.Time      `gorm:"column:start_time;index" json:"start_time"`
	EndTime          *time.Time     `gorm:"column:end_time" json:"end_time,omitempty"`
	Status           string         `gorm:"column:status;type:text;default:active;index" json:"status"`
	DurationSeconds  *int64         `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	AudioFilePath    string         `gorm:"column:audio_file_path;type:text" json:"audio_file_path"`
	ResponseFilePath *string        `gorm:"column:response_file_path;type:text" json:"response_file_path,omitempty"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at" json:"created_at"`

	Conversations []Conversation `gorm:"foreignKey:CallID;constraint:OnDelete:CASCADE" json:"conversations,omitempty"`
}

func (Call) TableName() string { return "calls" }

// Conversation is one question/answer exchange within a call, written once
// after the pipeline outcome is known and never updated.
type Conversation struct {
	ID                  uint      `gorm:"column:conversation_id;primaryKey;autoIncrement" json:"conversation_id"`
	CallID              uint      `gorm:"column:call_id;index" json:"call_id"`
	QuestionText        string    `gorm:"column:question_text;type:text" json:"question_text"`
	AnswerText          string    `gorm:"column:answer_text;type:text" json:"answer_text"`
	QuestionAudioPath   *string   `gorm:"column:question_audio_path;type:text" json:"question_audio_path,omitempty"`
	AnswerAudioPath     *string   `gorm:"column:answer_audio_path;type:text" json:"answer_audio_path,omitempty"`
	STTProcessingTime   float64   `gorm:"column:stt_processing_time" json:"stt_processing_time"`
	TTSProcessingTime   float64   `gorm:"column:tts_processing_time" json:"tts_processing_time"`
	TotalProcessingTime float64   `gorm:"column:total_processing_time" json:"total_processing_time"`
	Language            string    `gorm:"column:language;type:text;default:tw" json:"language"`
	CreatedAt           time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Conversation) TableName() string { return "conversations" }
