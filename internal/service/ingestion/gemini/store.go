package gemini

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"

	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	"github.com/KNICEX/legal-aid-agent/pkg/apierrx"
	"github.com/google/generative-ai-go/genai"
)

var _ ingestion.Store = (*Store)(nil)

// Store 基于 gemini files api 的文档存储
type Store struct {
	client *genai.Client
}

func NewStore(client *genai.Client) *Store {
	return &Store{
		client: client,
	}
}

func (s *Store) Upload(ctx context.Context, path, mimeType string) (ingestion.DocumentHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingestion.DocumentHandle{}, &ingestion.TransferError{Path: path, Err: err}
	}
	defer f.Close()

	// name 为空时由服务端分配
	file, err := s.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mimeType,
	})
	if err != nil {
		return ingestion.DocumentHandle{}, classifyUploadError(path, mimeType, err)
	}
	return fromGenaiFile(file), nil
}

func (s *Store) Get(ctx context.Context, id string) (ingestion.DocumentHandle, error) {
	file, err := s.client.GetFile(ctx, id)
	if err != nil {
		if apierrx.IsAuth(err) {
			return ingestion.DocumentHandle{}, &ingestion.AuthError{Err: err}
		}
		return ingestion.DocumentHandle{}, err
	}
	return fromGenaiFile(file), nil
}

// classifyUploadError 无效 key 同样是 400, 先于 mime 判断
func classifyUploadError(path, mimeType string, err error) error {
	if apierrx.IsAuth(err) {
		return &ingestion.AuthError{Err: err}
	}
	switch apierrx.HTTPStatus(err) {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return &ingestion.UnsupportedMediaError{Path: path, MIMEType: mimeType, Err: err}
	default:
		return &ingestion.TransferError{Path: path, Err: err}
	}
}

func fromGenaiState(state genai.FileState) ingestion.State {
	switch state {
	case genai.FileStateProcessing:
		return ingestion.StateProcessing
	case genai.FileStateActive:
		return ingestion.StateActive
	case genai.FileStateFailed:
		return ingestion.StateFailed
	default:
		return ingestion.StatePending
	}
}

func fromGenaiFile(file *genai.File) ingestion.DocumentHandle {
	if file == nil {
		return ingestion.DocumentHandle{}
	}
	return ingestion.DocumentHandle{
		ID:          file.Name,
		DisplayName: file.DisplayName,
		URI:         file.URI,
		MIMEType:    file.MIMEType,
		State:       fromGenaiState(file.State),
		SizeBytes:   file.SizeBytes,
		SHA256:      hex.EncodeToString(file.Sha256Hash),
		ExpiresAt:   file.ExpirationTime,
	}
}
