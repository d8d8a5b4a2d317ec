package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Turn 会话中已经发送给模型并被确认的一轮对话
type Turn struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	SessionId string `gorm:"uniqueIndex:session_seq_idx"`
	Seq       int    `gorm:"uniqueIndex:session_seq_idx"` // 在会话历史中的下标
	Role      string
	Parts     datatypes.JSONSlice[TurnPart]
	CreatedAt time.Time
}

type TurnPart struct {
	Text        string `json:"text,omitempty"`
	DocumentId  string `json:"document_id,omitempty"`
	DocumentURI string `json:"document_uri,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
}
