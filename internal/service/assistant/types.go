package assistant

import (
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/service/session"
)

type DocumentSpec struct {
	Alias    string `mapstructure:"alias"`
	Path     string `mapstructure:"path"`
	MIMEType string `mapstructure:"mime_type"`
}

type IngestionConfig struct {
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Documents    []DocumentSpec `mapstructure:"documents"`
}

// Config 提示词, seed 对话等都是数据, 从配置注入
type Config struct {
	SystemInstruction string             `mapstructure:"system_instruction"`
	SeedHistory       []session.SeedTurn `mapstructure:"seed_history"`
	Queries           []string           `mapstructure:"queries"`
	// ResumeSession 非空时从该会话的转录继续, 而不是开新会话
	ResumeSession string `mapstructure:"resume_session"`
}
