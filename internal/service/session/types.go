package session

import (
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
)

type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateReady         State = "READY"
	StateFailed        State = "FAILED"
)

type Config struct {
	ModelID    string               `mapstructure:"model"`
	Generation llm.GenerationConfig `mapstructure:"generation"`
	Retry      RetryConfig          `mapstructure:"retry"`
}

// RetryConfig 只对可重试的 UpstreamError 生效
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
)
