package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"github.com/KNICEX/legal-aid-agent/internal/repo"
	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
)

// Session 单写者资源, Send 通过 mu 串行化
type Session struct {
	mu sync.Mutex

	id                string
	state             State
	cfg               Config
	systemInstruction string
	history           []llm.Turn

	model       llm.Model
	transcripts repo.TranscriptRepo
	newBackOff  func(cfg RetryConfig) backoff.BackOff
	logger      *slog.Logger
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return StateUninitialized
	}
	return s.state
}

// History 返回当前历史的拷贝
func (s *Session) History() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return llm.CloneTurns(s.history)
}

// Send 追加用户输入, 携带完整历史请求模型, 成功后追加模型回复
// 失败时历史保持不变, 可以直接用同样的输入重试
func (s *Session) Send(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
	case StateFailed:
		return "", ErrSessionFailed
	default:
		return "", ErrSessionNotReady
	}

	userTurn := llm.Turn{Role: llm.RoleUser, Parts: []llm.Part{llm.Text(userText)}}
	req := llm.Request{
		ModelID:           s.cfg.ModelID,
		SystemInstruction: s.systemInstruction,
		Config:            s.cfg.Generation,
		History:           llm.CloneTurns(s.history),
		Message:           userTurn.Clone(),
	}

	var (
		reply   llm.Reply
		attempt int
	)
	b := backoff.WithContext(
		backoff.WithMaxRetries(s.newBackOff(s.cfg.Retry), uint64(s.cfg.Retry.MaxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		r, err := s.model.Generate(ctx, req)
		if err != nil {
			if isTransient(ctx, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = r
		return nil
	}, b, func(err error, wait time.Duration) {
		s.logger.Warn("model call failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return "", s.fail(ctx, err)
	}

	modelTurn := llm.Turn{Role: llm.RoleModel, Parts: []llm.Part{llm.Text(reply.Text)}}
	seq := len(s.history)
	s.history = append(s.history, userTurn, modelTurn)
	s.logger.Info("model replied",
		"turns", len(s.history),
		"attempts", attempt,
		"input_tokens", reply.InputTokens,
		"output_tokens", reply.OutputTokens,
		"finish_reason", reply.FinishReason,
	)

	// 服务端已经看到这一轮, 持久化失败不回滚
	s.persist(context.WithoutCancel(ctx), seq, userTurn, modelTurn)
	return reply.Text, nil
}

func (s *Session) fail(ctx context.Context, err error) error {
	var auth *llm.AuthError
	if errors.As(err, &auth) {
		s.state = StateFailed
		s.logger.Error("session failed", "error", err)
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("send aborted: %w", err)
	}
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		err = &llm.UpstreamError{Err: err}
	}
	s.logger.Error("model call failed", "error", err)
	return err
}

func (s *Session) persist(ctx context.Context, seq int, turns ...llm.Turn) {
	if s.transcripts == nil {
		return
	}
	records := lo.Map(turns, func(turn llm.Turn, i int) entity.Turn {
		return toEntityTurn(s.id, seq+i, turn)
	})
	if err := s.transcripts.Append(ctx, records...); err != nil {
		s.logger.Error("failed to persist transcript", "seq", seq, "error", err)
	}
}

func toEntityTurn(sessionId string, seq int, turn llm.Turn) entity.Turn {
	return entity.Turn{
		SessionId: sessionId,
		Seq:       seq,
		Role:      string(turn.Role),
		Parts: lo.Map(turn.Parts, func(part llm.Part, _ int) entity.TurnPart {
			if part.Kind == llm.PartDocument {
				return entity.TurnPart{
					DocumentId:  part.Document.ID,
					DocumentURI: part.Document.URI,
					MIMEType:    part.Document.MIMEType,
				}
			}
			return entity.TurnPart{Text: part.Text}
		}),
	}
}

// fromEntityTurn 转录里的文档只保存了引用, 能写入转录说明当时已是 ACTIVE
func fromEntityTurn(record entity.Turn) llm.Turn {
	return llm.Turn{
		Role: llm.Role(record.Role),
		Parts: lo.Map(record.Parts, func(part entity.TurnPart, _ int) llm.Part {
			if part.DocumentId != "" {
				return llm.Document(ingestion.DocumentHandle{
					ID:       part.DocumentId,
					URI:      part.DocumentURI,
					MIMEType: part.MIMEType,
					State:    ingestion.StateActive,
				})
			}
			return llm.Text(part.Text)
		}),
	}
}
