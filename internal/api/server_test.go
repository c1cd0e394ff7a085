package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"VolunTrack-Agent/internal/agent"
	"VolunTrack-Agent/internal/quote"
	"VolunTrack-Agent/internal/report"
	"VolunTrack-Agent/internal/solana"
	"VolunTrack-Agent/internal/storage/mysql"
)

type stubChain struct {
	balance uint64
	infos   []solana.SignatureInfo
	err     error
}

func (s *stubChain) GetBalance(_ context.Context, _ string) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.balance, nil
}

func (s *stubChain) GetSignaturesForAddress(_ context.Context, _ string, _ int) ([]solana.SignatureInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.infos, nil
}

func (s *stubChain) GetHealth(_ context.Context) error { return s.err }

func (s *stubChain) Cluster() string { return "testnet" }

func (s *stubChain) Close() {}

func newTestServer(t *testing.T, chain *stubChain, quoteUpstream http.HandlerFunc) (*Server, func()) {
	t.Helper()

	upstream := httptest.NewServer(quoteUpstream)
	quotes := quote.NewService(quote.Config{BaseURL: upstream.URL})

	repo, err := mysql.NewMemoryReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("create report repo: %v", err)
	}

	reports := report.NewGenerator(nil)
	ag, err := agent.New(chain, "wallet", quotes, reports)
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	return NewServer(":0", ag, quotes, repo, chain), upstream.Close
}

func TestHandleQuoteValidation(t *testing.T) {
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	t.Run("missing params", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=abc", nil)
		rec := httptest.NewRecorder()

		server.handleQuote(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body["error"] != "Missing required params: inputAsset, outputAsset, amount" {
			t.Fatalf("unexpected error message: %q", body["error"])
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=abc", nil)
		rec := httptest.NewRecorder()

		server.handleQuote(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid amount") {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=-5", nil)
		rec := httptest.NewRecorder()

		server.handleQuote(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("fraction below one", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=0.9", nil)
		rec := httptest.NewRecorder()

		server.handleQuote(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestHandleQuoteFractionalAmountTruncated(t *testing.T) {
	upstream := `{"outAmount":"210000000"}`
	var gotAmount string
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {
		gotAmount = r.URL.Query().Get("amount")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstream))
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=1500000000.7", nil)
	rec := httptest.NewRecorder()

	server.handleQuote(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("fractional amount must be truncated and forwarded, got %d", rec.Code)
	}
	if gotAmount != "1500000000" {
		t.Fatalf("upstream received amount %q, want 1500000000", gotAmount)
	}
	if rec.Body.String() != upstream {
		t.Fatalf("body not passed through verbatim: %s", rec.Body.String())
	}
}

func TestHandleQuotePassthrough(t *testing.T) {
	upstream := `{"outAmount":"138500000","routePlan":[]}`
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstream))
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=1000000000", nil)
	rec := httptest.NewRecorder()

	server.handleQuote(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != upstream {
		t.Fatalf("body not passed through verbatim: %s", rec.Body.String())
	}
}

func TestHandleQuoteUpstreamDown(t *testing.T) {
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quote?inputAsset=a&outputAsset=b&amount=1000000000", nil)
	rec := httptest.NewRecorder()

	server.handleQuote(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("degradation must answer 200, got %d", rec.Code)
	}
	var body struct {
		OutAmount string `json:"outAmount"`
		IsMock    bool   `json:"isMock"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode mock body: %v", err)
	}
	if !body.IsMock || body.OutAmount != "140000000" {
		t.Fatalf("unexpected mock body: %s", rec.Body.String())
	}
}

func TestHandleActivity(t *testing.T) {
	blockTime := int64(1700000000)
	chain := &stubChain{infos: []solana.SignatureInfo{{Signature: "sig-1", BlockTime: &blockTime}}}
	server, cleanup := newTestServer(t, chain, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity?limit=3", nil)
	rec := httptest.NewRecorder()

	server.handleActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Address string `json:"address"`
		Records []struct {
			Signature string `json:"signature"`
			Timestamp int64  `json:"timestamp"`
		} `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Address != "wallet" {
		t.Fatalf("unexpected address: %q", body.Address)
	}
	if len(body.Records) != 1 || body.Records[0].Signature != "sig-1" {
		t.Fatalf("unexpected records: %+v", body.Records)
	}
}

func TestHandleActivityChainDown(t *testing.T) {
	chain := &stubChain{err: errors.New("connection refused")}
	server, cleanup := newTestServer(t, chain, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil)
	rec := httptest.NewRecorder()

	server.handleActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("chain outage must still answer 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"records":[]`) {
		t.Fatalf("expected empty records array: %s", rec.Body.String())
	}
}

func TestHandleBalance(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		server, cleanup := newTestServer(t, &stubChain{balance: 5}, func(w http.ResponseWriter, r *http.Request) {})
		defer cleanup()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
		rec := httptest.NewRecorder()

		server.handleBalance(rec, req)

		var body struct {
			Lamports  uint64 `json:"lamports"`
			Available bool   `json:"available"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !body.Available || body.Lamports != 5 {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("chain down", func(t *testing.T) {
		server, cleanup := newTestServer(t, &stubChain{err: errors.New("timeout")}, func(w http.ResponseWriter, r *http.Request) {})
		defer cleanup()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
		rec := httptest.NewRecorder()

		server.handleBalance(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Available bool `json:"available"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Available {
			t.Fatalf("expected available=false: %s", rec.Body.String())
		}
	})
}

func TestHandleReportArchivesResult(t *testing.T) {
	blockTime := int64(1700000000)
	chain := &stubChain{
		balance: 1_000_000_000,
		infos:   []solana.SignatureInfo{{Signature: "sig-1", BlockTime: &blockTime}},
	}
	server, cleanup := newTestServer(t, chain, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", strings.NewReader(`{"period":"Тиждень"}`))
	rec := httptest.NewRecorder()

	server.handleReport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var got reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID == "" {
		t.Fatalf("report id missing")
	}
	if got.Period != "Тиждень" {
		t.Fatalf("unexpected period: %q", got.Period)
	}
	// 没有生成凭证时走提示分支，报告被标记为降级。
	if !got.Fallback {
		t.Fatalf("expected fallback report")
	}
	// 报价上游不可用：估值按兜底汇率计算。
	if got.Estimate != 140 {
		t.Fatalf("unexpected estimate: %v", got.Estimate)
	}

	archived, err := server.reports.ListLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != got.ID {
		t.Fatalf("report not archived: %+v", archived)
	}
}

func TestHandleListReports(t *testing.T) {
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	if err := server.reports.Save(context.Background(), mysql.ReportRecord{
		ID:      "report-1",
		Address: "wallet",
		Summary: "короткий підсумок",
	}); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=5", nil)
	rec := httptest.NewRecorder()

	server.handleListReports(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var got []mysql.ReportRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "report-1" {
		t.Fatalf("unexpected archive listing: %+v", got)
	}
}

func TestHandleHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {})
		defer cleanup()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
		rec := httptest.NewRecorder()

		server.handleHealthz(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"cluster":"testnet"`) {
			t.Fatalf("cluster missing from body: %s", rec.Body.String())
		}
	})

	t.Run("chain unreachable", func(t *testing.T) {
		server, cleanup := newTestServer(t, &stubChain{err: errors.New("unhealthy")}, func(w http.ResponseWriter, r *http.Request) {})
		defer cleanup()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
		rec := httptest.NewRecorder()

		server.handleHealthz(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("probe must not fail on chain outage, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	server, cleanup := newTestServer(t, &stubChain{}, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/report", nil)
	rec := httptest.NewRecorder()

	server.handleReport(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
