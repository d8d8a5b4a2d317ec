package repo

import (
	"context"

	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"gorm.io/gorm"
)

type TranscriptRepo interface {
	Append(ctx context.Context, turns ...entity.Turn) error
	FindBySession(ctx context.Context, sessionId string) ([]entity.Turn, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepo {
	return &transcriptRepo{
		db: db,
	}
}

// Append 在一个事务里写入全部轮次
func (r *transcriptRepo) Append(ctx context.Context, turns ...entity.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&turns).Error
	})
}

func (r *transcriptRepo) FindBySession(ctx context.Context, sessionId string) ([]entity.Turn, error) {
	var turns []entity.Turn
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Order("seq asc").Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}
