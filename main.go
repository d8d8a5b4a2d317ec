package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KNICEX/legal-aid-agent/internal/repo"
	"github.com/KNICEX/legal-aid-agent/internal/schedule"
	"github.com/KNICEX/legal-aid-agent/internal/service/assistant"
	"github.com/KNICEX/legal-aid-agent/ioc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// --config=./config/xxx.yaml
	configFile = pflag.String("config", "./config/config.dev.yaml", "specify config file")
	queries    = pflag.StringArray("query", nil, "question to send, repeatable; reads stdin when none configured")
	resume     = pflag.String("resume", "", "continue the session with this id from its stored transcript")
	verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
)

func initViper() {
	pflag.Parse()

	viper.SetConfigFile(*configFile)
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
}

func main() {
	initViper()
	if *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := run(); err != nil {
		slog.Error("legal aid assistant failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	geminiCli := ioc.InitGeminiCli()
	defer geminiCli.Close()
	db := ioc.InitDB()
	if err := repo.InitTables(db); err != nil {
		return err
	}

	cfg := ioc.InitAssistantConfig()
	if len(*queries) > 0 {
		cfg.Queries = *queries
	}
	if *resume != "" {
		cfg.ResumeSession = *resume
	}

	task := assistant.NewTask(
		ioc.InitGateway(geminiCli, db),
		ioc.InitOrchestrator(geminiCli, db),
		ioc.InitIngestionConfig(),
		ioc.InitSessionConfig(),
		cfg,
		assistant.WithInput(os.Stdin),
		assistant.WithOutput(os.Stdout),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return schedule.Run(ctx, task)
}
