package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"VolunTrack-Agent/internal/llm"
	"VolunTrack-Agent/internal/quote"
	"VolunTrack-Agent/internal/report"
	"VolunTrack-Agent/internal/solana"
)

type stubChain struct {
	balance   uint64
	infos     []solana.SignatureInfo
	err       error
	lastLimit int
}

func (s *stubChain) GetBalance(_ context.Context, _ string) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.balance, nil
}

func (s *stubChain) GetSignaturesForAddress(_ context.Context, _ string, limit int) ([]solana.SignatureInfo, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.infos, nil
}

func (s *stubChain) GetHealth(_ context.Context) error { return s.err }

func (s *stubChain) Cluster() string { return "testnet" }

func (s *stubChain) Close() {}

type stubLLM struct {
	text string
}

func (s *stubLLM) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: s.text}, nil
}

func newUnreachableQuoteService() *quote.Service {
	// 指向已关闭的端口，保证每次上游调用都失败。
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return quote.NewService(quote.Config{BaseURL: srv.URL})
}

func TestNewValidation(t *testing.T) {
	quotes := quote.NewService(quote.Config{})
	reports := report.NewGenerator(nil)

	if _, err := New(&stubChain{}, "", quotes, reports); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := New(&stubChain{}, "wallet", nil, reports); err == nil {
		t.Fatalf("expected error for missing quote service")
	}
	if _, err := New(&stubChain{}, "wallet", quotes, nil); err == nil {
		t.Fatalf("expected error for missing report generator")
	}
}

func TestBalance(t *testing.T) {
	quotes := quote.NewService(quote.Config{})
	reports := report.NewGenerator(nil)

	t.Run("success", func(t *testing.T) {
		ag, err := New(&stubChain{balance: 2_000_000_000}, "wallet", quotes, reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		balance, err := ag.Balance(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance != 2_000_000_000 {
			t.Fatalf("unexpected balance: %d", balance)
		}
	})

	t.Run("rpc failure", func(t *testing.T) {
		ag, err := New(&stubChain{err: errors.New("connection refused")}, "wallet", quotes, reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := ag.Balance(context.Background()); err == nil {
			t.Fatalf("expected error when chain is unreachable")
		}
	})
}

func TestEstimateConversionNeverErrors(t *testing.T) {
	reports := report.NewGenerator(nil)

	t.Run("upstream down falls back", func(t *testing.T) {
		ag, err := New(&stubChain{}, "wallet", newUnreachableQuoteService(), reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := ag.EstimateConversion(context.Background(), 1_000_000_000)
		if !result.IsFallback {
			t.Fatalf("expected fallback result")
		}
		if result.RawOutputAmount != "140000000" {
			t.Fatalf("unexpected fallback amount: %q", result.RawOutputAmount)
		}
	})

	t.Run("invalid amount degrades to zero", func(t *testing.T) {
		ag, err := New(&stubChain{}, "wallet", newUnreachableQuoteService(), reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := ag.EstimateConversion(context.Background(), -1)
		if !result.IsFallback || !result.IsSimulation {
			t.Fatalf("expected degraded simulation result: %+v", result)
		}
		if result.RawOutputAmount != "0" {
			t.Fatalf("unexpected amount: %q", result.RawOutputAmount)
		}
	})
}

func TestWithActivityLimit(t *testing.T) {
	quotes := quote.NewService(quote.Config{})
	reports := report.NewGenerator(nil)
	chain := &stubChain{}

	ag, err := New(chain, "wallet", quotes, reports, WithActivityLimit(12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ag.FetchRecentActivity(context.Background(), 0)
	if chain.lastLimit != 12 {
		t.Fatalf("default limit not applied, chain saw %d", chain.lastLimit)
	}

	ag.GenerateReport(context.Background(), "", 0)
	if chain.lastLimit != 12 {
		t.Fatalf("report fetch ignored the configured limit, chain saw %d", chain.lastLimit)
	}

	ag.FetchRecentActivity(context.Background(), 3)
	if chain.lastLimit != 3 {
		t.Fatalf("explicit limit must win, chain saw %d", chain.lastLimit)
	}
}

func TestGenerateReportFlow(t *testing.T) {
	blockTime := int64(1700000000)
	chain := &stubChain{infos: []solana.SignatureInfo{{Signature: "sig-1", BlockTime: &blockTime}}}
	quotes := quote.NewService(quote.Config{})

	t.Run("with provider", func(t *testing.T) {
		reports := report.NewGenerator(&stubLLM{text: "Підсумок за тиждень."})
		ag, err := New(chain, "wallet", quotes, reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := ag.GenerateReport(context.Background(), "Тиждень", 138.5)
		if result.Summary != "Підсумок за тиждень." {
			t.Fatalf("unexpected summary: %q", result.Summary)
		}
		if result.Period != "Тиждень" {
			t.Fatalf("unexpected period: %q", result.Period)
		}
	})

	t.Run("chain down yields empty-activity branch", func(t *testing.T) {
		downChain := &stubChain{err: errors.New("connection refused")}
		reports := report.NewGenerator(&stubLLM{text: "не має значення"})
		ag, err := New(downChain, "wallet", quotes, reports)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := ag.GenerateReport(context.Background(), "", 0)
		if result.Summary != report.DefaultPhrases().CannedSummary {
			t.Fatalf("unexpected summary: %q", result.Summary)
		}
		if len(result.Insights) != 1 {
			t.Fatalf("expected the instructional insight: %+v", result.Insights)
		}
	})
}
