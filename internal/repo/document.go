package repo

import (
	"context"

	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepo interface {
	Save(ctx context.Context, doc entity.Document) error
	UpdateState(ctx context.Context, remoteId string, state string) error
}

type documentRepo struct {
	db *gorm.DB
}

func NewDocumentRepo(db *gorm.DB) DocumentRepo {
	return &documentRepo{
		db: db,
	}
}

// Save 按 remote id 插入或覆盖
func (r *documentRepo) Save(ctx context.Context, doc entity.Document) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "path", "uri", "mime_type", "state", "size_bytes", "sha256", "expires_at", "updated_at",
		}),
	}).Create(&doc).Error
}

func (r *documentRepo) UpdateState(ctx context.Context, remoteId string, state string) error {
	return r.db.WithContext(ctx).Model(&entity.Document{}).Where("remote_id = ?", remoteId).Update("state", state).Error
}
