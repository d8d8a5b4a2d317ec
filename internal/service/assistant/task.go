package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KNICEX/legal-aid-agent/internal/schedule"
	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
	"github.com/KNICEX/legal-aid-agent/internal/service/session"
	"github.com/samber/lo"
)

var ErrDuplicateAlias = errors.New("duplicate document alias")

// Task 上传文档, 等待处理完成, 用 seed 历史初始化会话, 然后逐条发送问题
type Task struct {
	gateway      ingestion.Gateway
	orchestrator *session.Orchestrator

	ingestionCfg IngestionConfig
	sessionCfg   session.Config
	cfg          Config

	in  io.Reader
	out io.Writer
}

type Option func(t *Task)

// WithInput 没有配置 queries 时从 in 逐行读取问题
func WithInput(in io.Reader) Option {
	return func(t *Task) {
		t.in = in
	}
}

func WithOutput(out io.Writer) Option {
	return func(t *Task) {
		t.out = out
	}
}

func NewTask(gateway ingestion.Gateway, orchestrator *session.Orchestrator,
	ingestionCfg IngestionConfig, sessionCfg session.Config, cfg Config, opts ...Option) schedule.Task {
	t := &Task{
		gateway:      gateway,
		orchestrator: orchestrator,
		ingestionCfg: ingestionCfg,
		sessionCfg:   sessionCfg,
		cfg:          cfg,
		in:           strings.NewReader(""),
		out:          io.Discard,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Task) Run(ctx context.Context) error {
	docs, err := t.ingest(ctx)
	if err != nil {
		return err
	}

	seed, err := session.ResolveSeed(t.cfg.SeedHistory, docs)
	if err != nil {
		return fmt.Errorf("resolve seed history: %w", err)
	}
	chat, err := t.open(ctx, seed)
	if err != nil {
		return err
	}

	if len(t.cfg.Queries) > 0 {
		for _, q := range t.cfg.Queries {
			if err = t.ask(ctx, chat, q); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if err = t.ask(ctx, chat, q); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (t *Task) open(ctx context.Context, seed []llm.Turn) (*session.Session, error) {
	if t.cfg.ResumeSession == "" {
		chat, err := t.orchestrator.Initialize(t.sessionCfg, t.cfg.SystemInstruction, seed)
		if err != nil {
			return nil, fmt.Errorf("initialize session: %w", err)
		}
		return chat, nil
	}
	chat, err := t.orchestrator.Resume(ctx, t.sessionCfg, t.cfg.SystemInstruction, seed, t.cfg.ResumeSession)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", t.cfg.ResumeSession, err)
	}
	return chat, nil
}

func (t *Task) Name() string {
	return "legal aid assistant task"
}

// ingest 上传所有文档并等待全部 ACTIVE, 返回 alias -> handle
func (t *Task) ingest(ctx context.Context) (map[string]ingestion.DocumentHandle, error) {
	specs := t.ingestionCfg.Documents
	if dup := lo.FindDuplicatesBy(specs, func(s DocumentSpec) string {
		return s.Alias
	}); len(dup) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, dup[0].Alias)
	}

	handles := make([]ingestion.DocumentHandle, 0, len(specs))
	for _, spec := range specs {
		h, err := t.gateway.Upload(ctx, spec.Path, spec.MIMEType)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", spec.Alias, err)
		}
		handles = append(handles, h)
	}

	if err := t.gateway.AwaitReady(ctx, handles, t.ingestionCfg.PollInterval, t.ingestionCfg.Timeout); err != nil {
		return nil, err
	}

	docs := make(map[string]ingestion.DocumentHandle, len(specs))
	for i, spec := range specs {
		docs[spec.Alias] = handles[i]
	}
	return docs, nil
}

func (t *Task) ask(ctx context.Context, chat *session.Session, q string) error {
	reply, err := chat.Send(ctx, q)
	if err != nil {
		return fmt.Errorf("send %q: %w", q, err)
	}
	slog.Debug("query answered", "session", chat.ID(), "turns", len(chat.History()))
	_, err = fmt.Fprintln(t.out, reply)
	return err
}
