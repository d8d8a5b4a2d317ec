package ioc

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

// InitGeminiCli 凭证只从环境变量 GEMINI_API_KEY 读取, 缺失直接 panic
func InitGeminiCli() *genai.Client {
	if err := viper.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY"); err != nil {
		panic(err)
	}
	apiKey := viper.GetString("llm.gemini.api_key")
	if apiKey == "" {
		panic("no gemini api key set, export GEMINI_API_KEY")
	}

	cli, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		panic(err)
	}
	return cli
}
