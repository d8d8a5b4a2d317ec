package ingestion

import (
	"context"
	"time"
)

type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateActive     State = "ACTIVE"
	StateFailed     State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateActive || s == StateFailed
}

func (s State) ToString() string {
	return string(s)
}

// DocumentHandle 远端文档的引用以及最近一次轮询到的处理状态
type DocumentHandle struct {
	ID          string
	DisplayName string
	URI         string
	MIMEType    string
	State       State

	SizeBytes int64
	SHA256    string
	ExpiresAt time.Time
}

// Store 远端文档存储, 由具体的后端实现 (gemini files api)
type Store interface {
	Upload(ctx context.Context, path, mimeType string) (DocumentHandle, error)
	Get(ctx context.Context, id string) (DocumentHandle, error)
}

type Gateway interface {
	// Upload 上传本地文件, 立即返回句柄, 不等待处理完成
	Upload(ctx context.Context, path, mimeType string) (DocumentHandle, error)
	// PollState 查询一次处理状态, 幂等
	PollState(ctx context.Context, handle DocumentHandle) (State, error)
	// AwaitReady 阻塞直到所有句柄 ACTIVE, 任意一个 FAILED 立即返回
	// 轮询到的最新状态会写回 handles
	AwaitReady(ctx context.Context, handles []DocumentHandle, pollInterval, timeout time.Duration) error
}
