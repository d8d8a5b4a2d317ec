package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KNICEX/legal-aid-agent/internal/repo"
	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Orchestrator 创建会话, 会话之间不共享任何可变状态
type Orchestrator struct {
	model       llm.Model
	transcripts repo.TranscriptRepo
	newBackOff  func(cfg RetryConfig) backoff.BackOff
	logger      *slog.Logger
}

type Option func(o *Orchestrator)

// WithTranscripts 持久化每次成功的问答
func WithTranscripts(transcripts repo.TranscriptRepo) Option {
	return func(o *Orchestrator) {
		o.transcripts = transcripts
	}
}

// WithBackOff 替换重试之间的指数退避, 测试里用零间隔
func WithBackOff(factory func(cfg RetryConfig) backoff.BackOff) Option {
	return func(o *Orchestrator) {
		if factory != nil {
			o.newBackOff = factory
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOrchestrator(model llm.Model, opts ...Option) (*Orchestrator, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	o := &Orchestrator{
		model:      model,
		newBackOff: exponentialBackOff,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Initialize 用 seed 历史构造会话, 不发起任何网络请求
// seed 中引用的文档必须已经是 ACTIVE
func (o *Orchestrator) Initialize(cfg Config, systemInstruction string, seed []llm.Turn) (*Session, error) {
	s, err := o.initialize(cfg, systemInstruction, seed, uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.logger.Info("session initialized", "model", cfg.ModelID, "seed_turns", len(seed))
	return s, nil
}

// Resume 从转录恢复会话: 历史为 seed 加上该会话已持久化的问答, 会话 id 不变
// 转录的 seq 必须从 len(seed) 开始连续
func (o *Orchestrator) Resume(ctx context.Context, cfg Config, systemInstruction string,
	seed []llm.Turn, sessionId string) (*Session, error) {
	if o.transcripts == nil {
		return nil, ErrTranscriptsRequired
	}
	records, err := o.transcripts.FindBySession(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", sessionId, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionId)
	}

	history := llm.CloneTurns(seed)
	for _, record := range records {
		if record.Seq != len(history) {
			return nil, fmt.Errorf("%w: session %s has seq %d at position %d",
				ErrTranscriptMismatch, sessionId, record.Seq, len(history))
		}
		history = append(history, fromEntityTurn(record))
	}

	s, err := o.initialize(cfg, systemInstruction, history, sessionId)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session resumed", "model", cfg.ModelID, "seed_turns", len(seed), "restored_turns", len(records))
	return s, nil
}

func (o *Orchestrator) initialize(cfg Config, systemInstruction string, history []llm.Turn, id string) (*Session, error) {
	if cfg.ModelID == "" {
		return nil, ErrModelIDRequired
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}

	s := &Session{
		id:                id,
		state:             StateReady,
		cfg:               cfg,
		systemInstruction: systemInstruction,
		history:           llm.CloneTurns(history),
		model:             o.model,
		transcripts:       o.transcripts,
		newBackOff:        o.newBackOff,
	}
	s.logger = o.logger.With("session", s.id)
	return s, nil
}

func validateHistory(turns []llm.Turn) error {
	for i, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", ErrInvalidTurn, i, turn.Role)
		}
		if len(turn.Parts) == 0 {
			return fmt.Errorf("%w: turn %d has no parts", ErrInvalidTurn, i)
		}
		for _, part := range turn.Parts {
			if part.Kind != llm.PartDocument {
				continue
			}
			if part.Document.State != ingestion.StateActive {
				return fmt.Errorf("%w: turn %d references %s in state %s",
					ErrDocumentNotReady, i, part.Document.ID, part.Document.State)
			}
		}
	}
	return nil
}

func exponentialBackOff(cfg RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialInterval
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	b.MaxInterval = DefaultMaxInterval
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	// 次数由 MaxAttempts 控制
	b.MaxElapsedTime = 0
	return b
}

// isTransient 只有可重试的上游错误才重试, 取消/鉴权失败立即返回
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var upstream *llm.UpstreamError
	return errors.As(err, &upstream) && upstream.Retryable
}
