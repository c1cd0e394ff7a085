package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"VolunTrack-Agent/internal/agent"
	"VolunTrack-Agent/internal/observability/metrics"
	"VolunTrack-Agent/internal/quote"
	"VolunTrack-Agent/internal/solana"
	"VolunTrack-Agent/internal/storage/mysql"
	"VolunTrack-Agent/pkg/logger"
)

// Server 负责暴露 REST 接口，供仪表盘与外部系统读取财务数据。
type Server struct {
	addr    string
	agent   *agent.Agent
	quotes  *quote.Service
	reports mysql.ReportRepository
	chain   solana.Client
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag *agent.Agent, quotes *quote.Service, reports mysql.ReportRepository, chain solana.Client) *Server {
	return &Server{addr: addr, agent: ag, quotes: quotes, reports: reports, chain: chain}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Routes 返回完整的路由表，便于测试直接驱动处理器。
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", instrument("quote", s.handleQuote))
	mux.HandleFunc("/api/v1/quote", instrument("quote", s.handleQuote))
	mux.HandleFunc("/api/v1/activity", instrument("activity", s.handleActivity))
	mux.HandleFunc("/api/v1/balance", instrument("balance", s.handleBalance))
	mux.HandleFunc("/api/v1/report", instrument("report", s.handleReport))
	mux.HandleFunc("/api/v1/reports", instrument("reports", s.handleListReports))
	mux.HandleFunc("/api/v1/healthz", instrument("healthz", s.handleHealthz))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// handleQuote 处理兑换报价请求。
// 上游失败时返回 200 与兜底兑换结果，对调用方永远不暴露 5xx。
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	if s.quotes == nil {
		writeError(w, http.StatusServiceUnavailable, "报价服务未初始化")
		return
	}

	query := r.URL.Query()
	inputAsset := strings.TrimSpace(query.Get("inputAsset"))
	outputAsset := strings.TrimSpace(query.Get("outputAsset"))
	rawAmount := strings.TrimSpace(query.Get("amount"))
	if inputAsset == "" || outputAsset == "" || rawAmount == "" {
		writeError(w, http.StatusBadRequest, "Missing required params: inputAsset, outputAsset, amount")
		return
	}

	// 小数金额向下取整后转发，只有非有限或取整后非正的值才拒绝。
	parsed, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed >= math.MaxInt64 {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	amount := int64(math.Floor(parsed))
	if amount <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	slippageBps := 0
	if raw := query.Get("slippageBasisPoints"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			slippageBps = parsed
		}
	}

	body, degraded := s.quotes.Raw(r.Context(), inputAsset, amount, outputAsset, slippageBps)
	if degraded {
		metrics.ObserveDegradation("quote-api")
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleActivity 返回钱包最近的活动记录。
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent 未初始化")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records := s.agent.FetchRecentActivity(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"address": s.agent.Address(),
		"records": records,
	})
}

// handleBalance 返回钱包余额。链不可达时给出零余额与可用性标记。
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent 未初始化")
		return
	}

	balance, err := s.agent.Balance(r.Context())
	available := err == nil
	if !available {
		metrics.ObserveDegradation("chain-rpc")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":   s.agent.Address(),
		"lamports":  balance,
		"sol":       float64(balance) / 1e9,
		"available": available,
	})
}

type reportRequest struct {
	Period string `json:"period"`
	// EstimateUSDC 允许调用方直接提供估值，跳过余额查询与报价调用。
	EstimateUSDC float64 `json:"estimate_usdc"`
}

type reportResponse struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Period   string   `json:"period"`
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
	Fallback bool     `json:"fallback"`
	Estimate float64  `json:"estimateUsdc"`
}

// handleReport 触发一次报告生成并归档结果。
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent 未初始化")
		return
	}

	// 空请求体或解析失败时使用默认周期。
	var req reportRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			req = reportRequest{}
		}
	}

	ctx := r.Context()

	// 余额与估值都走降级路径，报告生成不会因此失败。
	estimate := quote.Result{OutputAmount: req.EstimateUSDC}
	if req.EstimateUSDC <= 0 {
		if balance, err := s.agent.Balance(ctx); err == nil && balance > 0 {
			estimate = s.agent.EstimateConversion(ctx, int64(balance))
		}
		if estimate.IsFallback {
			metrics.ObserveDegradation("quote-api")
		}
	}

	result := s.agent.GenerateReport(ctx, req.Period, estimate.OutputAmount)

	record := mysql.ReportRecord{
		ID:        uuid.NewString(),
		Address:   s.agent.Address(),
		Period:    result.Period,
		Summary:   result.Summary,
		Insights:  result.Insights,
		Fallback:  len(result.Insights) == 0,
		CreatedAt: time.Now().Unix(),
	}
	if s.reports != nil {
		if err := s.reports.Save(ctx, record); err != nil {
			logger.Named("api").Warn("归档报告失败", "error", err)
		}
	}
	logger.Audit().Info("report generated",
		"report_id", record.ID,
		"address", record.Address,
		"period", record.Period,
		"fallback", record.Fallback,
	)

	writeJSON(w, http.StatusOK, reportResponse{
		ID:       record.ID,
		Address:  record.Address,
		Period:   record.Period,
		Summary:  record.Summary,
		Insights: record.Insights,
		Fallback: record.Fallback,
		Estimate: estimate.OutputAmount,
	})
}

// handleListReports 返回最近归档的报告。
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "报告归档未初始化")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.reports.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []mysql.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealthz 汇报自身与链端点的健康状态。
// 链不健康不会让探针失败，状态体中标记 degraded 即可。
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "仅支持 GET")
		return
	}

	status := "ok"
	chainStatus := "ok"
	cluster := ""
	if s.chain == nil {
		chainStatus = "unconfigured"
	} else {
		cluster = s.chain.Cluster()
		if err := s.chain.GetHealth(r.Context()); err != nil {
			status = "degraded"
			chainStatus = "unreachable"
			metrics.ObserveDegradation("chain-rpc")
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"chain":   chainStatus,
		"cluster": cluster,
	})
}

// instrument 为处理器补充请求指标。
func instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(started))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "服务已关闭")
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
