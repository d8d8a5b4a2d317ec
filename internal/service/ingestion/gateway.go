package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"github.com/KNICEX/legal-aid-agent/internal/repo"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 10 * time.Second

var _ Gateway = (*gateway)(nil)

type gateway struct {
	store        Store
	registry     repo.DocumentRepo
	pollInterval time.Duration
	logger       *slog.Logger
}

type Option func(g *gateway)

// WithRegistry 记录上传的文档及其状态变化
func WithRegistry(registry repo.DocumentRepo) Option {
	return func(g *gateway) {
		g.registry = registry
	}
}

// WithPollInterval AwaitReady 传入的间隔不大于 0 时使用该值
func WithPollInterval(interval time.Duration) Option {
	return func(g *gateway) {
		if interval > 0 {
			g.pollInterval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGateway(store Store, opts ...Option) (Gateway, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	g := &gateway{
		store:        store,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *gateway) Upload(ctx context.Context, path, mimeType string) (DocumentHandle, error) {
	if mimeType == "" {
		mimeType = inferMIMEType(path)
		if mimeType == "" {
			return DocumentHandle{}, &UnsupportedMediaError{Path: path}
		}
	}
	if _, err := os.Stat(path); err != nil {
		return DocumentHandle{}, &TransferError{Path: path, Err: err}
	}

	handle, err := g.store.Upload(ctx, path, mimeType)
	if err != nil {
		var unsupported *UnsupportedMediaError
		var transfer *TransferError
		var auth *AuthError
		if errors.As(err, &unsupported) || errors.As(err, &transfer) || errors.As(err, &auth) {
			return DocumentHandle{}, err
		}
		return DocumentHandle{}, &TransferError{Path: path, Err: err}
	}
	if handle.State == "" {
		handle.State = StatePending
	}
	g.logger.Info(fmt.Sprintf("Uploaded file '%s' as: %s", handle.DisplayName, handle.URI),
		"id", handle.ID, "state", handle.State)

	if g.registry != nil {
		err = g.registry.Save(ctx, toEntity(path, handle))
		if err != nil {
			g.logger.Error("failed to record uploaded document", "id", handle.ID, "error", err)
		}
	}
	return handle, nil
}

func (g *gateway) PollState(ctx context.Context, handle DocumentHandle) (State, error) {
	latest, err := g.store.Get(ctx, handle.ID)
	if err != nil {
		return handle.State, &PollError{Handle: handle, Err: err}
	}
	return latest.State, nil
}

func (g *gateway) AwaitReady(ctx context.Context, handles []DocumentHandle, pollInterval, timeout time.Duration) error {
	pending := lo.UniqBy(lo.Filter(handles, func(h DocumentHandle, _ int) bool {
		return h.State != StateActive
	}), func(h DocumentHandle) string {
		return h.ID
	})
	if len(pending) == 0 {
		return nil
	}
	if failed, ok := lo.Find(pending, func(h DocumentHandle) bool {
		return h.State == StateFailed
	}); ok {
		return &ProcessingError{Handle: failed}
	}
	if pollInterval <= 0 {
		pollInterval = g.pollInterval
	}

	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	g.logger.Info("Waiting for file processing...", "files", len(pending))

	var mu sync.Mutex
	states := make(map[string]State, len(pending))
	eg, egCtx := errgroup.WithContext(waitCtx)
	for _, h := range pending {
		h := h
		eg.Go(func() error {
			state, err := g.waitOne(egCtx, h, pollInterval)
			mu.Lock()
			states[h.ID] = state
			mu.Unlock()
			return err
		})
	}
	err := eg.Wait()

	// 把最新状态写回调用方的句柄
	for i := range handles {
		if state, ok := states[handles[i].ID]; ok {
			handles[i].State = state
		}
	}

	if err == nil {
		g.logger.Info("...all files ready")
		return nil
	}

	var processing *ProcessingError
	var poll *PollError
	switch {
	case errors.As(err, &processing), errors.As(err, &poll):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("await files: %w", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Pending: lo.Filter(pending, func(h DocumentHandle, _ int) bool {
			return states[h.ID] != StateActive
		})}
	default:
		return err
	}
}

// waitOne 轮询单个句柄直到终态, 返回最后一次看到的状态
func (g *gateway) waitOne(ctx context.Context, h DocumentHandle, interval time.Duration) (State, error) {
	state := h.State
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-timer.C:
		}

		latest, err := g.PollState(ctx, h)
		if err != nil {
			// 超时或取消导致的失败不算轮询错误
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			return state, err
		}
		if latest != state {
			g.recordState(ctx, h.ID, latest)
		}
		state = latest

		if state.Terminal() {
			if state == StateFailed {
				h.State = state
				return state, &ProcessingError{Handle: h}
			}
			g.logger.Debug("file ready", "id", h.ID)
			return state, nil
		}
		g.logger.Debug("file still processing", "id", h.ID, "state", state)
		timer.Reset(interval)
	}
}

func (g *gateway) recordState(ctx context.Context, id string, state State) {
	if g.registry == nil {
		return
	}
	if err := g.registry.UpdateState(ctx, id, state.ToString()); err != nil {
		g.logger.Error("failed to record document state", "id", id, "state", state, "error", err)
	}
}

func inferMIMEType(path string) string {
	typ := mime.TypeByExtension(filepath.Ext(path))
	if typ == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(typ)
	if err != nil {
		return typ
	}
	return mediaType
}

func toEntity(path string, h DocumentHandle) entity.Document {
	return entity.Document{
		RemoteId:    h.ID,
		DisplayName: h.DisplayName,
		Path:        path,
		URI:         h.URI,
		MIMEType:    h.MIMEType,
		State:       h.State.ToString(),
		SizeBytes:   h.SizeBytes,
		SHA256:      h.SHA256,
		ExpiresAt:   h.ExpiresAt,
	}
}
