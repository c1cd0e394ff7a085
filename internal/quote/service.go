package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "VolunTrack-Agent/internal/errors"
	"VolunTrack-Agent/pkg/logger"
)

const (
	defaultBaseURL  = "https://quote-api.jup.ag/v6"
	defaultTimeout  = 5000 * time.Millisecond
	defaultRate     = 140
	lamportsPerSOL  = 1e9
	usdcBaseUnits   = 1e6
	maxUpstreamBody = 1 << 20
	defaultSlippage = 50
)

// Result 表示一次兑换估值的结果。
// IsSimulation 恒为 true：系统只报价，从不构造或广播交易。
type Result struct {
	OutputAmount    float64 `json:"output_amount"`
	RawOutputAmount string  `json:"raw_output_amount"`
	IsSimulation    bool    `json:"is_simulation"`
	IsFallback      bool    `json:"is_fallback"`
}

// Config 描述报价服务的参数。
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	FallbackRate float64
}

// Service 封装对上游报价接口的调用，并持有超时与兜底策略。
// 核心契约：Quote 除输入校验外永不失败——要么是真实报价，要么是兜底报价。
type Service struct {
	baseURL      string
	timeout      time.Duration
	fallbackRate float64
	httpClient   *http.Client
	log          *slog.Logger
}

// NewService 根据配置创建报价服务。
func NewService(cfg Config) *Service {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rate := cfg.FallbackRate
	if rate <= 0 {
		rate = defaultRate
	}
	return &Service{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		fallbackRate: rate,
		httpClient:   &http.Client{},
		log:          logger.Named("quote"),
	}
}

// FallbackOutAmount 按固定汇率计算兜底输出金额（目标资产最小单位）。
// 9 位小数的源资产换 6 位小数的目标资产：floor((amount/1e9) * rate * 1e6)。
func (s *Service) FallbackOutAmount(amountLamports int64) int64 {
	return int64(math.Floor(float64(amountLamports) / lamportsPerSOL * s.fallbackRate * usdcBaseUnits))
}

func (s *Service) validate(inputMint string, amountBaseUnits int64, outputMint string) error {
	if strings.TrimSpace(inputMint) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "inputMint 不能为空")
	}
	if strings.TrimSpace(outputMint) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "outputMint 不能为空")
	}
	if amountBaseUnits <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "amount 必须为正整数")
	}
	return nil
}

func (s *Service) buildURL(inputMint string, amountBaseUnits int64, outputMint string, slippageBps int) string {
	if slippageBps <= 0 {
		slippageBps = defaultSlippage
	}
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatInt(amountBaseUnits, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))
	return s.baseURL + "/quote?" + params.Encode()
}

// fetch 在超时边界内请求上游并返回原始响应体。
// 任何失败（网络、非 2xx、超时）都以 error 返回，由调用方决定兜底。
func (s *Service) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建报价请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求报价服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("读取报价响应失败: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("报价服务返回错误状态 %d", resp.StatusCode)
	}
	return body, nil
}

// Raw 返回上游报价响应的原始 JSON，供 HTTP 边界原样透传。
// 上游失败时返回兜底 JSON（{"outAmount":"...","isMock":true}）和 isMock=true。
// 入参校验仍由调用方负责；这里假定参数已经合法。
func (s *Service) Raw(ctx context.Context, inputMint string, amountBaseUnits int64, outputMint string, slippageBps int) ([]byte, bool) {
	body, err := s.fetch(ctx, s.buildURL(inputMint, amountBaseUnits, outputMint, slippageBps))
	if err == nil {
		// 响应体必须是合法 JSON 才能透传。
		if json.Valid(body) {
			return body, false
		}
		err = fmt.Errorf("报价响应不是合法 JSON")
	}

	s.log.Warn("报价上游不可用，使用兜底报价",
		slog.Int64("amount", amountBaseUnits),
		slog.Any("error", err),
	)
	mock, _ := json.Marshal(map[string]any{
		"outAmount": strconv.FormatInt(s.FallbackOutAmount(amountBaseUnits), 10),
		"isMock":    true,
	})
	return mock, true
}

// Quote 执行一次兑换估值。
// 前置校验失败是唯一会返回 error 的情形（属于编程错误而非环境故障）；
// 之后无论上游发生什么，都保证恰好产出"真实报价"或"兜底报价"之一。
func (s *Service) Quote(ctx context.Context, inputMint string, amountBaseUnits int64, outputMint string, slippageBps int) (Result, error) {
	if err := s.validate(inputMint, amountBaseUnits, outputMint); err != nil {
		return Result{}, err
	}

	body, err := s.fetch(ctx, s.buildURL(inputMint, amountBaseUnits, outputMint, slippageBps))
	if err == nil {
		var decoded struct {
			OutAmount string `json:"outAmount"`
		}
		if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
			err = fmt.Errorf("解析报价响应失败: %w", jsonErr)
		} else if raw, parseErr := strconv.ParseInt(decoded.OutAmount, 10, 64); parseErr != nil {
			err = fmt.Errorf("报价响应 outAmount 无效: %w", parseErr)
		} else {
			return Result{
				OutputAmount:    float64(raw) / usdcBaseUnits,
				RawOutputAmount: decoded.OutAmount,
				IsSimulation:    true,
				IsFallback:      false,
			}, nil
		}
	}

	s.log.Warn("报价上游不可用，使用兜底报价",
		slog.Int64("amount", amountBaseUnits),
		slog.Any("error", xerrors.Wrap(xerrors.CodeQuoteUnavailable, err, "")),
	)
	fallback := s.FallbackOutAmount(amountBaseUnits)
	return Result{
		OutputAmount:    float64(fallback) / usdcBaseUnits,
		RawOutputAmount: strconv.FormatInt(fallback, 10),
		IsSimulation:    true,
		IsFallback:      true,
	}, nil
}
