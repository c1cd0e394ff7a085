package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address: %q", cfg.Server.Address)
	}
	if cfg.Chain.Cluster != "devnet" {
		t.Fatalf("unexpected cluster: %q", cfg.Chain.Cluster)
	}
	if cfg.Chain.RPCURL != "https://api.devnet.solana.com" {
		t.Fatalf("unexpected rpc url: %q", cfg.Chain.RPCURL)
	}
	if cfg.Quote.Timeout() != 5*time.Second {
		t.Fatalf("unexpected quote timeout: %v", cfg.Quote.Timeout())
	}
	if cfg.Quote.FallbackRate != 140 {
		t.Fatalf("unexpected fallback rate: %v", cfg.Quote.FallbackRate)
	}
	if cfg.Quote.DefaultSlippageBps != 50 {
		t.Fatalf("unexpected slippage: %d", cfg.Quote.DefaultSlippageBps)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("unexpected provider: %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Gemini.APIKeyEnv != EnvAPIKey {
		t.Fatalf("unexpected api key env: %q", cfg.LLM.Gemini.APIKeyEnv)
	}
	if cfg.Report.DefaultPeriod != "Останні транзакції" {
		t.Fatalf("unexpected default period: %q", cfg.Report.DefaultPeriod)
	}
	if cfg.Storage.ReportStore.Driver != "memory" {
		t.Fatalf("unexpected storage driver: %q", cfg.Storage.ReportStore.Driver)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voluntrack.json")
	content := `{
  "server": {"address": ":9090"},
  "wallet": {"address": "DonationWallet111111111111111111111111111111"},
  "chain": {"cluster": "mainnet-beta", "rpc_url": "https://rpc.example.com", "timeout_ms": 3000},
  "quote": {"timeout_ms": 2500, "fallback_rate": 150},
  "report": {"phrases_path": "phrases.json"},
  "runtime": {"data_dir": "state"}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected address: %q", cfg.Server.Address)
	}
	if cfg.Wallet.Address != "DonationWallet111111111111111111111111111111" {
		t.Fatalf("unexpected wallet: %q", cfg.Wallet.Address)
	}
	if cfg.Chain.Timeout() != 3*time.Second {
		t.Fatalf("unexpected chain timeout: %v", cfg.Chain.Timeout())
	}
	if cfg.Quote.Timeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected quote timeout: %v", cfg.Quote.Timeout())
	}
	if cfg.Quote.FallbackRate != 150 {
		t.Fatalf("unexpected fallback rate: %v", cfg.Quote.FallbackRate)
	}

	// 相对路径基于配置文件所在目录解析。
	if cfg.Runtime.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("unexpected data dir: %q", cfg.Runtime.DataDir)
	}
	if cfg.Report.PhrasesPath != filepath.Join(dir, "phrases.json") {
		t.Fatalf("unexpected phrases path: %q", cfg.Report.PhrasesPath)
	}

	// 未填写的字段保留默认值。
	if cfg.Quote.BaseURL != "https://quote-api.jup.ag/v6" {
		t.Fatalf("unexpected quote base url: %q", cfg.Quote.BaseURL)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		if _, err := Load(""); err == nil {
			t.Fatalf("expected error for empty path")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(EnvRPCEndpoint, "https://rpc.override.example.com")

	cfg := Default()

	if cfg.Chain.RPCURL != "https://rpc.override.example.com" {
		t.Fatalf("env override not applied: %q", cfg.Chain.RPCURL)
	}
}
