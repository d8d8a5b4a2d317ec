package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrStoreRequired = errors.New("document store required")

// TransferError 上传失败 (网络或本地 IO), 可重试
type TransferError struct {
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// UnsupportedMediaError 存储拒绝了该 mime type, 需要调用方修正输入
type UnsupportedMediaError struct {
	Path     string
	MIMEType string
	Err      error
}

func (e *UnsupportedMediaError) Error() string {
	if e.MIMEType == "" {
		return fmt.Sprintf("unsupported media %s: cannot infer mime type", e.Path)
	}
	if e.Err == nil {
		return fmt.Sprintf("unsupported media %s: %s", e.Path, e.MIMEType)
	}
	return fmt.Sprintf("unsupported media %s: %s: %v", e.Path, e.MIMEType, e.Err)
}

func (e *UnsupportedMediaError) Unwrap() error {
	return e.Err
}

// AuthError 凭证被拒绝, 重试没有意义
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("files api rejected credentials: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// PollError 查询状态本身失败, 与文档处理失败区分
type PollError struct {
	Handle DocumentHandle
	Err    error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s: %v", e.Handle.ID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// ProcessingError 文档进入 FAILED, 需要重新上传
type ProcessingError struct {
	Handle DocumentHandle
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("file %s (%s) failed to process", e.Handle.ID, e.Handle.DisplayName)
}

type TimeoutError struct {
	Pending []DocumentHandle
}

func (e *TimeoutError) Error() string {
	ids := lo.Map(e.Pending, func(h DocumentHandle, _ int) string {
		return h.ID
	})
	return fmt.Sprintf("timed out waiting for files: %s", strings.Join(ids, ", "))
}
