package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// 环境变量覆盖项。部署环境里通常只改这两个值，其余都走配置文件。
const (
	EnvRPCEndpoint = "RPC_ENDPOINT_URL"
	EnvAPIKey      = "GENERATION_API_KEY"
)

// Config 描述了 voluntrackd 在启动阶段一次性加载的全部配置。
// 所有组件的参数都从这里传入构造函数，运行期间不再读取环境变量。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Wallet  WalletConfig  `json:"wallet"`
	Chain   ChainConfig   `json:"chain"`
	Quote   QuoteConfig   `json:"quote"`
	LLM     LLMConfig     `json:"llm"`
	Report  ReportConfig  `json:"report"`
	Storage StorageConfig `json:"storage"`
	Logger  LoggerConfig  `json:"logger"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
// MetricsAddress 非空时会额外启动一个独立的 /metrics 服务。
type ServerConfig struct {
	Address        string `json:"address"`
	MetricsAddress string `json:"metrics_address"`
}

// WalletConfig 指定被监控的捐赠钱包。
type WalletConfig struct {
	Address string `json:"address"`
}

// ChainConfig 包含访问 Solana 节点所需的 RPC 地址。
type ChainConfig struct {
	Cluster     string `json:"cluster"`
	ChainConfig string `json:"chain_config"`
	RPCURL      string `json:"rpc_url"`
	TimeoutMS   int    `json:"timeout_ms"`
}

// Timeout 返回 RPC 调用超时时间。
func (c ChainConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// QuoteConfig 配置兑换报价服务。
type QuoteConfig struct {
	BaseURL            string  `json:"base_url"`
	TimeoutMS          int     `json:"timeout_ms"`
	FallbackRate       float64 `json:"fallback_rate"`
	DefaultSlippageBps int     `json:"default_slippage_bps"`
	InputMint          string  `json:"input_mint"`
	OutputMint         string  `json:"output_mint"`
}

// Timeout 返回报价调用的有界等待时长。
func (c QuoteConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LLMConfig 用于配置文本生成服务的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	Gemini   GeminiConfig `json:"gemini"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// GeminiConfig 描述调用 Google Generative Language API 所需的信息。
type GeminiConfig struct {
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Timeout 返回 Gemini 调用超时时间。
func (c GeminiConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// OpenAIConfig 描述调用 Chat Completions 兼容服务所需的信息。
type OpenAIConfig struct {
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Timeout 返回 OpenAI 调用超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ReportConfig 控制报告生成的默认参数。
type ReportConfig struct {
	DefaultPeriod string `json:"default_period"`
	PhrasesPath   string `json:"phrases_path"`
	ActivityLimit int    `json:"activity_limit"`
}

// StorageConfig 描述报告归档的存储后端。
type StorageConfig struct {
	ReportStore ReportStoreConfig `json:"report_store"`
}

// ReportStoreConfig 提供内存与 MySQL 两种驱动。
type ReportStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// LoggerConfig 控制结构化日志输出。
type LoggerConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件并套用环境变量覆盖。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv()

	return &cfg, nil
}

// Default 返回一份仅靠默认值与环境变量即可运行的配置。
// 没有配置文件时 voluntrackd 用它启动（报价兜底与降级逻辑不依赖外部服务）。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	cfg.applyEnv()
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Chain.Cluster == "" {
		c.Chain.Cluster = "devnet"
	}
	if c.Chain.RPCURL == "" {
		c.Chain.RPCURL = "https://api.devnet.solana.com"
	}
	if c.Chain.TimeoutMS <= 0 {
		c.Chain.TimeoutMS = 10000
	}

	if c.Quote.BaseURL == "" {
		c.Quote.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if c.Quote.TimeoutMS <= 0 {
		c.Quote.TimeoutMS = 5000
	}
	if c.Quote.FallbackRate <= 0 {
		c.Quote.FallbackRate = 140
	}
	if c.Quote.DefaultSlippageBps <= 0 {
		c.Quote.DefaultSlippageBps = 50
	}
	if c.Quote.InputMint == "" {
		c.Quote.InputMint = "So11111111111111111111111111111111111111112"
	}
	if c.Quote.OutputMint == "" {
		c.Quote.OutputMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Gemini.APIKeyEnv == "" {
		c.LLM.Gemini.APIKeyEnv = EnvAPIKey
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = EnvAPIKey
	}

	if c.Report.DefaultPeriod == "" {
		c.Report.DefaultPeriod = "Останні транзакції"
	}
	if c.Report.ActivityLimit <= 0 {
		c.Report.ActivityLimit = 5
	}

	if c.Storage.ReportStore.Driver == "" {
		c.Storage.ReportStore.Driver = "memory"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Chain.ChainConfig != "" && !filepath.IsAbs(c.Chain.ChainConfig) {
		c.Chain.ChainConfig = filepath.Join(baseDir, c.Chain.ChainConfig)
	}
	if c.Report.PhrasesPath != "" && !filepath.IsAbs(c.Report.PhrasesPath) {
		c.Report.PhrasesPath = filepath.Join(baseDir, c.Report.PhrasesPath)
	}
}

// applyEnv 套用环境变量覆盖，保证部署时不需要改配置文件。
func (c *Config) applyEnv() {
	if rpc := strings.TrimSpace(os.Getenv(EnvRPCEndpoint)); rpc != "" {
		c.Chain.RPCURL = rpc
	}
}
