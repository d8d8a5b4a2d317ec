package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
	"github.com/KNICEX/legal-aid-agent/pkg/apierrx"
	"github.com/google/generative-ai-go/genai"
)

var _ llm.Model = (*Service)(nil)

type Service struct {
	client *genai.Client
}

func NewService(client *genai.Client) *Service {
	return &Service{
		client: client,
	}
}

// Generate 每次请求新建 ChatSession 并注入完整历史, 本地历史由调用方维护
func (s *Service) Generate(ctx context.Context, req llm.Request) (llm.Reply, error) {
	model := s.client.GenerativeModel(req.ModelID)
	applyConfig(model, req.Config)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}

	session := model.StartChat()
	session.History = toContents(req.History)
	resp, err := session.SendMessage(ctx, toParts(req.Message.Parts)...)
	if err != nil {
		return llm.Reply{}, classifyError(err)
	}
	return parseResponse(resp), nil
}

func applyConfig(model *genai.GenerativeModel, cfg llm.GenerationConfig) {
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}
	if cfg.TopP > 0 {
		model.SetTopP(cfg.TopP)
	}
	if cfg.TopK > 0 {
		model.SetTopK(cfg.TopK)
	}
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.OutputFormat != "" {
		model.ResponseMIMEType = cfg.OutputFormat
	}
}

func toParts(parts []llm.Part) []genai.Part {
	res := make([]genai.Part, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case llm.PartDocument:
			res = append(res, genai.FileData{
				MIMEType: part.Document.MIMEType,
				URI:      part.Document.URI,
			})
		default:
			res = append(res, genai.Text(part.Text))
		}
	}
	return res
}

func toContents(turns []llm.Turn) []*genai.Content {
	res := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		res = append(res, &genai.Content{
			Role:  string(turn.Role),
			Parts: toParts(turn.Parts),
		})
	}
	return res
}

func parseResponse(resp *genai.GenerateContentResponse) llm.Reply {
	var reply llm.Reply
	if resp == nil {
		return reply
	}
	if resp.UsageMetadata != nil {
		reply.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		reply.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 {
		return reply
	}
	candidate := resp.Candidates[0]
	reply.FinishReason = candidate.FinishReason.String()
	if candidate.Content == nil {
		return reply
	}

	var resStr strings.Builder
	for _, part := range candidate.Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			continue
		}
		if resStr.Len() > 0 {
			resStr.WriteString("\n")
		}
		resStr.WriteString(string(text))
	}
	reply.Text = resStr.String()
	return reply
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// 被安全策略拦截, 重试也没用
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llm.UpstreamError{Err: err}
	}
	if apierrx.IsAuth(err) {
		return &llm.AuthError{Err: err}
	}
	return &llm.UpstreamError{
		Err:        err,
		StatusCode: apierrx.HTTPStatus(err),
		Retryable:  apierrx.IsRetryable(err),
	}
}
