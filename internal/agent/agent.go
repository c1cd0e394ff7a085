package agent

import (
	"context"
	"log/slog"
	"strings"

	"VolunTrack-Agent/internal/activity"
	xerrors "VolunTrack-Agent/internal/errors"
	"VolunTrack-Agent/internal/quote"
	"VolunTrack-Agent/internal/report"
	"VolunTrack-Agent/internal/solana"
	"VolunTrack-Agent/pkg/logger"
)

// defaultActivityLimit 是单次活动查询的默认条数。
const defaultActivityLimit = 5

// Agent 是捐赠钱包监控的门面，协调链上读取、兑换估值与报告生成。
// 钱包地址在构造时固定，实例对单一身份不可变；
// 切换钱包时重新构造实例，而不是修改现有实例。
type Agent struct {
	chain         solana.Client
	address       string
	reader        *activity.Reader
	quotes        *quote.Service
	reports       *report.Generator
	inputMint     string
	outputMint    string
	slippageBps   int
	activityLimit int
	log           *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithQuoteDefaults 设置估值时默认的源资产、目标资产与滑点。
func WithQuoteDefaults(inputMint, outputMint string, slippageBps int) Option {
	return func(a *Agent) {
		if strings.TrimSpace(inputMint) != "" {
			a.inputMint = inputMint
		}
		if strings.TrimSpace(outputMint) != "" {
			a.outputMint = outputMint
		}
		if slippageBps > 0 {
			a.slippageBps = slippageBps
		}
	}
}

// WithActivityLimit 设置未显式传入 limit 时的活动查询条数。
func WithActivityLimit(limit int) Option {
	return func(a *Agent) {
		if limit > 0 {
			a.activityLimit = limit
		}
	}
}

// WithEnricher 配置活动记录的金额补充实现。
func WithEnricher(e activity.Enricher) Option {
	return func(a *Agent) {
		a.reader = activity.NewReader(a.chain, activity.WithEnricher(e))
	}
}

// New 创建一个绑定到指定钱包地址的 Agent。
func New(chain solana.Client, address string, quotes *quote.Service, reports *report.Generator, opts ...Option) (*Agent, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "钱包地址不能为空")
	}
	if quotes == nil || reports == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "报价服务与报告生成器必须配置")
	}

	ag := &Agent{
		chain:         chain,
		address:       address,
		reader:        activity.NewReader(chain),
		quotes:        quotes,
		reports:       reports,
		inputMint:     "So11111111111111111111111111111111111111112",
		outputMint:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		slippageBps:   50,
		activityLimit: defaultActivityLimit,
		log:           logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag, nil
}

// Address 返回被监控的钱包地址。
func (a *Agent) Address() string {
	return a.address
}

// FetchRecentActivity 返回钱包最近的活动记录。
// RPC 失败被 Reader 吸收为空序列，这里不会返回错误。
func (a *Agent) FetchRecentActivity(ctx context.Context, limit int) []activity.Record {
	if limit <= 0 {
		limit = a.activityLimit
	}
	return a.reader.FetchRecent(ctx, a.address, limit)
}

// Balance 查询钱包的 lamports 余额。
// 链不可达时返回 0 与错误，由调用方决定展示方式。
func (a *Agent) Balance(ctx context.Context) (uint64, error) {
	if a.chain == nil {
		return 0, xerrors.New(xerrors.CodeInitializationFailure, "未配置链客户端")
	}
	balance, err := a.chain.GetBalance(ctx, a.address)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeRPCFailure, err, "查询余额失败")
	}
	return balance, nil
}

// EstimateConversion 估算将指定 lamports 兑换为稳定资产的价值。
// 门面层永不失败：入参非法时直接给出零值兜底结果。
func (a *Agent) EstimateConversion(ctx context.Context, amountLamports int64) quote.Result {
	result, err := a.quotes.Quote(ctx, a.inputMint, amountLamports, a.outputMint, a.slippageBps)
	if err != nil {
		a.log.Warn("估值入参非法，返回零值兜底结果",
			slog.Int64("amount", amountLamports),
			slog.Any("error", err),
		)
		return quote.Result{
			RawOutputAmount: "0",
			IsSimulation:    true,
			IsFallback:      true,
		}
	}
	return result
}

// GenerateReport 生成财务摘要报告。
// estimateUSDC 为最近一次估值结果，显式传入而非由 Agent 持有状态；
// 传 0 或负值表示没有可用估值。
func (a *Agent) GenerateReport(ctx context.Context, periodLabel string, estimateUSDC float64) report.Result {
	records := a.FetchRecentActivity(ctx, a.activityLimit)
	return a.reports.Generate(ctx, records, periodLabel, estimateUSDC)
}
