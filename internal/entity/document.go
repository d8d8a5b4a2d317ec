package entity

import (
	"time"
)

// Document 已上传到远端存储的文档
type Document struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	RemoteId    string `gorm:"uniqueIndex"` // 服务端分配的 id, 例如 files/abc123
	DisplayName string
	Path        string
	URI         string
	MIMEType    string
	State       string `gorm:"index"`
	SizeBytes   int64
	SHA256      string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
