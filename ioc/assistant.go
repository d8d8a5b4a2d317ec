package ioc

import (
	"github.com/KNICEX/legal-aid-agent/internal/repo"
	"github.com/KNICEX/legal-aid-agent/internal/service/assistant"
	"github.com/KNICEX/legal-aid-agent/internal/service/ingestion"
	ingestiongemini "github.com/KNICEX/legal-aid-agent/internal/service/ingestion/gemini"
	llmgemini "github.com/KNICEX/legal-aid-agent/internal/service/llm/gemini"
	"github.com/KNICEX/legal-aid-agent/internal/service/session"
	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

func InitSessionConfig() session.Config {
	var cfg session.Config
	if err := viper.UnmarshalKey("llm.gemini", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitIngestionConfig() assistant.IngestionConfig {
	var cfg assistant.IngestionConfig
	if err := viper.UnmarshalKey("ingestion", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitAssistantConfig() assistant.Config {
	var cfg assistant.Config
	if err := viper.UnmarshalKey("assistant", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitGateway(cli *genai.Client, db *gorm.DB) ingestion.Gateway {
	gateway, err := ingestion.NewGateway(
		ingestiongemini.NewStore(cli),
		ingestion.WithRegistry(repo.NewDocumentRepo(db)),
	)
	if err != nil {
		panic(err)
	}
	return gateway
}

func InitOrchestrator(cli *genai.Client, db *gorm.DB) *session.Orchestrator {
	orchestrator, err := session.NewOrchestrator(
		llmgemini.NewService(cli),
		session.WithTranscripts(repo.NewTranscriptRepo(db)),
	)
	if err != nil {
		panic(err)
	}
	return orchestrator
}
