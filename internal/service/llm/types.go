package llm

import (
	"context"

	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

type PartKind int

const (
	PartText PartKind = iota
	PartDocument
)

// Part 文本或者已上传的文档, 值类型, 复制即深拷贝
type Part struct {
	Kind     PartKind
	Text     string
	Document ingestion.DocumentHandle
}

func Text(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func Document(handle ingestion.DocumentHandle) Part {
	return Part{Kind: PartDocument, Document: handle}
}

type Turn struct {
	Role  Role
	Parts []Part
}

func (t Turn) Clone() Turn {
	parts := make([]Part, len(t.Parts))
	copy(parts, t.Parts)
	return Turn{Role: t.Role, Parts: parts}
}

// CloneTurns 深拷贝历史, 发送出去的请求不受后续追加影响
func CloneTurns(turns []Turn) []Turn {
	res := make([]Turn, len(turns))
	for i, turn := range turns {
		res[i] = turn.Clone()
	}
	return res
}

// GenerationConfig 为零值的字段使用服务端默认值
type GenerationConfig struct {
	Temperature     *float32 `mapstructure:"temperature"`
	TopP            float32  `mapstructure:"top_p"`
	TopK            int32    `mapstructure:"top_k"`
	MaxOutputTokens int32    `mapstructure:"max_output_tokens"`
	OutputFormat    string   `mapstructure:"output_format"` // response mime type, text/plain or application/json
}

type Request struct {
	ModelID           string
	SystemInstruction string
	Config            GenerationConfig
	History           []Turn
	Message           Turn
}

type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// Model 无状态的模型调用, 每次请求都携带完整历史
type Model interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
