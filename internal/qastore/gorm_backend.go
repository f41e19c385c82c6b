package qastore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cultiflow/voicedesk/internal/matcher"
	"github.com/cultiflow/voicedesk/internal/models"
)

// GormBackend adapts one GORM-managed database (Postgres or SQLite) to the
// Backend interface. Schema creation is idempotent.
type GormBackend struct {
	name string
	db   *gorm.DB
}

func NewGormBackend(name string, db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&models.QAPair{}); err != nil {
		return nil, err
	}
	return &GormBackend{name: name, db: db}, nil
}

func (b *GormBackend) Name() string { return b.name }

func (b *GormBackend) ListByLanguage(ctx context.Context, language string) ([]models.QAPair, error) {
	var rows []models.QAPair
	err := b.db.WithContext(ctx).Where("language = ?", language).Find(&rows).Error
	return rows, err
}

func (b *GormBackend) TouchUsage(ctx context.Context, id uint) error {
	return b.db.WithContext(ctx).Model(&models.QAPair{}).
		Where("qa_id = ?", id).
		UpdateColumns(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"last_used":   time.Now().UTC(),
		}).Error
}

func (b *GormBackend) Upsert(ctx context.Context, question, answer, language string) (uint, error) {
	norm := matcher.Normalize(question)

	var id uint
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique key is the normalized question, which SQL cannot compute,
		// so the find half of find-or-insert runs in Go over the language's
		// pair set. Same normalization as lookup.
		var rows []models.QAPair
		if err := tx.Where("language = ?", language).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			if matcher.Normalize(r.QuestionText) != norm {
				continue
			}
			id = r.ID
			return tx.Model(&models.QAPair{}).Where("qa_id = ?", r.ID).
				Updates(map[string]any{
					"answer_text": answer,
					"updated_at":  time.Now().UTC(),
				}).Error
		}
		row := models.QAPair{
			QuestionText: question,
			AnswerText:   answer,
			Language:     language,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	return id, err
}

func (b *GormBackend) Get(ctx context.Context, id uint) (*models.QAPair, error) {
	var row models.QAPair
	err := b.db.WithContext(ctx).Where("qa_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (b *GormBackend) List(ctx context.Context, language string, limit int) ([]models.QAPair, error) {
	q := b.db.WithContext(ctx).Model(&models.QAPair{})
	if language != "" {
		q = q.Where("language = ?", language)
	}
	// last_used is nullable; never-used pairs sort last.
	q = q.Order("usage_count DESC").
		Order("CASE WHEN last_used IS NULL THEN 1 ELSE 0 END").
		Order("last_used DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.QAPair
	err := q.Find(&rows).Error
	return rows, err
}

func (b *GormBackend) Delete(ctx context.Context, id uint) (bool, error) {
	res := b.db.WithContext(ctx).Where("qa_id = ?", id).Delete(&models.QAPair{})
	return res.RowsAffected > 0, res.Error
}

func (b *GormBackend) DeleteAll(ctx context.Context) (int64, error) {
	res := b.db.WithContext(ctx).Where("1 = 1").Delete(&models.QAPair{})
	return res.RowsAffected, res.Error
}
