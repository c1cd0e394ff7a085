package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"VolunTrack-Agent/internal/agent"
	"VolunTrack-Agent/internal/api"
	"VolunTrack-Agent/internal/config"
	"VolunTrack-Agent/internal/llm"
	"VolunTrack-Agent/internal/llm/gemini"
	"VolunTrack-Agent/internal/llm/openai"
	"VolunTrack-Agent/internal/observability/metrics"
	"VolunTrack-Agent/internal/quote"
	"VolunTrack-Agent/internal/report"
	"VolunTrack-Agent/internal/solana/provider"
	"VolunTrack-Agent/internal/storage/mysql"
	"VolunTrack-Agent/pkg/logger"
)

// main 是 VolunTrack 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("voluntrackd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 不存在时静默跳过，环境变量保持原样。
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		OutputPaths: cfg.Logger.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logger.AuditPath != "",
			Path:    cfg.Logger.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	chainRegistry, err := provider.NewRegistry(cfg.Chain)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	chainClient, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	quoteService := quote.NewService(quote.Config{
		BaseURL:      cfg.Quote.BaseURL,
		Timeout:      cfg.Quote.Timeout(),
		FallbackRate: cfg.Quote.FallbackRate,
	})

	// 文本生成凭证缺失不是致命错误：报告走说明性降级分支。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}
	if llmClient == nil {
		logger.L().Warn("未配置文本生成凭证，报告将使用说明性内容")
	}

	phrases := report.DefaultPhrases()
	if cfg.Report.PhrasesPath != "" {
		loaded, err := report.LoadPhrases(cfg.Report.PhrasesPath)
		if err != nil {
			return err
		}
		phrases = loaded
	}
	reportGenerator := report.NewGenerator(llmClient,
		report.WithPhrases(phrases),
		report.WithDefaultPeriod(cfg.Report.DefaultPeriod),
	)

	var reportRepo mysql.ReportRepository
	switch cfg.Storage.ReportStore.Driver {
	case "memory", "":
		repo, err := mysql.NewMemoryReportRepository(cfg.Runtime.DataDir)
		if err != nil {
			return err
		}
		reportRepo = repo
	case "mysql":
		repo, err := mysql.NewSQLReportRepository(cfg.Storage.ReportStore.DSN)
		if err != nil {
			return err
		}
		reportRepo = repo
	default:
		return fmt.Errorf("未知的存储驱动: %s", cfg.Storage.ReportStore.Driver)
	}
	defer func() {
		_ = reportRepo.Close()
	}()

	ag, err := agent.New(chainClient, cfg.Wallet.Address, quoteService, reportGenerator,
		agent.WithQuoteDefaults(cfg.Quote.InputMint, cfg.Quote.OutputMint, cfg.Quote.DefaultSlippageBps),
		agent.WithActivityLimit(cfg.Report.ActivityLimit),
	)
	if err != nil {
		return err
	}

	logger.L().Info("voluntrackd 启动",
		"address", cfg.Server.Address,
		"wallet", cfg.Wallet.Address,
		"cluster", cfg.Chain.Cluster,
	)

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Warn("metrics 服务退出", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, ag, quoteService, reportRepo, chainClient)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig 优先读取 VOLUNTRACK_CONFIG 指定的文件，
// 其次是 configs/voluntrack.json，都不存在时退回默认配置。
func loadConfig() (*config.Config, error) {
	configPath := os.Getenv("VOLUNTRACK_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "voluntrack.json")
		if _, err := os.Stat(configPath); err != nil {
			return config.Default(), nil
		}
	}
	return config.Load(configPath)
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "gemini":
		apiKey := strings.TrimSpace(cfg.LLM.Gemini.APIKey)
		if apiKey == "" && cfg.LLM.Gemini.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.Gemini.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, nil
		}
		return gemini.NewClient(gemini.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.Gemini.BaseURL,
			Model:   cfg.LLM.Gemini.Model,
			Timeout: cfg.LLM.Gemini.Timeout(),
		})
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, nil
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的文本生成 provider: %s", cfg.LLM.Provider)
	}
}
