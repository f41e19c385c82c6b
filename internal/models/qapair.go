package models

import "time"

// QAPair is reference data: one stored question with its canonical answer.
// IDs are backend-local: the same pair upserted into both backends gets an
// independent id in each, so an id is only meaningful together with the
// backend that issued it. The semantic key is (normalized question, language).
type QAPair struct {
	ID           uint       `gorm:"column:qa_id;primaryKey;autoIncrement" json:"qa_id"`
	QuestionText string     `gorm:"column:question_text;type:text;not null;uniqueIndex:idx_qa_question_lang" json:"question_text"`
	AnswerText   string     `gorm:"column:answer_text;type:text;not null" json:"answer_text"`
	Language     string     `gorm:"column:language;type:text;default:tw;index;uniqueIndex:idx_qa_question_lang" json:"language"`
	UsageCount   int64      `gorm:"column:usage_count;default:0" json:"usage_count"`
	LastUsed     *time.Time `gorm:"column:last_used" json:"last_used,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (QAPair) TableName() string { return "qa_pairs" }
