package session

import (
	"fmt"

	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
)

// SeedPart 配置中的一段内容, Text 和 Document 二选一
// Document 为已配置文档的别名
type SeedPart struct {
	Text     string `mapstructure:"text"`
	Document string `mapstructure:"document"`
}

type SeedTurn struct {
	Role  llm.Role   `mapstructure:"role"`
	Parts []SeedPart `mapstructure:"parts"`
}

// ResolveSeed 把配置中的 seed 历史按别名替换成文档句柄
func ResolveSeed(seed []SeedTurn, documents map[string]ingestion.DocumentHandle) ([]llm.Turn, error) {
	turns := make([]llm.Turn, 0, len(seed))
	for i, st := range seed {
		if !st.Role.Valid() {
			return nil, fmt.Errorf("%w: seed turn %d has role %q", ErrInvalidTurn, i, st.Role)
		}
		turn := llm.Turn{Role: st.Role, Parts: make([]llm.Part, 0, len(st.Parts))}
		for j, sp := range st.Parts {
			switch {
			case sp.Text != "" && sp.Document != "":
				return nil, fmt.Errorf("%w: seed turn %d part %d sets both text and document", ErrInvalidTurn, i, j)
			case sp.Document != "":
				handle, ok := documents[sp.Document]
				if !ok {
					return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, sp.Document)
				}
				turn.Parts = append(turn.Parts, llm.Document(handle))
			case sp.Text != "":
				turn.Parts = append(turn.Parts, llm.Text(sp.Text))
			default:
				return nil, fmt.Errorf("%w: seed turn %d part %d is empty", ErrInvalidTurn, i, j)
			}
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
