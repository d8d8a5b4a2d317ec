package repo

import (
	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Document{}, &entity.Turn{})
}
