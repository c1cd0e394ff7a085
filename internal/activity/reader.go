package activity

import (
	"context"
	"log/slog"

	"VolunTrack-Agent/internal/solana"
	"VolunTrack-Agent/pkg/logger"
)

// defaultLimit 是单次查询返回的默认记录条数。
const defaultLimit = 5

// Record 表示一条归一化后的钱包事件。
// 由 Reader 创建后不再修改；调用方刷新视图时直接整体替换。
type Record struct {
	Signature string `json:"signature"`
	Amount    int64  `json:"amount"`
	Mint      string `json:"mint,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Enricher 为记录补充金额与资产信息。
// 目前的实现不解析交易明细，Amount 恒为 0；
// 解析逻辑接入时实现该接口即可，Reader 本身不需要改动。
type Enricher interface {
	Enrich(ctx context.Context, records []Record) []Record
}

// NoopEnricher 是默认的空实现。
type NoopEnricher struct{}

// Enrich 原样返回记录。
func (NoopEnricher) Enrich(_ context.Context, records []Record) []Record {
	return records
}

// Reader 从链上读取地址的最近活动。
type Reader struct {
	client   solana.Client
	enricher Enricher
	log      *slog.Logger
}

// Option 定义可选的 Reader 配置。
type Option func(*Reader)

// WithEnricher 配置金额补充实现。
func WithEnricher(e Enricher) Option {
	return func(r *Reader) {
		if e != nil {
			r.enricher = e
		}
	}
}

// NewReader 创建一个活动读取器。
func NewReader(client solana.Client, opts ...Option) *Reader {
	r := &Reader{
		client:   client,
		enricher: NoopEnricher{},
		log:      logger.Named("activity"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// FetchRecent 返回地址最近的活动记录，按时间倒序排列。
// 任何 RPC 失败都只记录日志并返回空序列——监控失败不能阻塞代理的其余能力。
// 单次尝试，不重试；是否重新调用由上层决定。
func (r *Reader) FetchRecent(ctx context.Context, address string, limit int) []Record {
	if r == nil || r.client == nil || address == "" {
		return []Record{}
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	infos, err := r.client.GetSignaturesForAddress(ctx, address, limit)
	if err != nil {
		r.log.Warn("获取签名列表失败，返回空活动序列",
			slog.String("address", address),
			slog.Any("error", err),
		)
		return []Record{}
	}

	records := make([]Record, 0, len(infos))
	for _, info := range infos {
		record := Record{
			Signature: info.Signature,
		}
		if info.BlockTime != nil {
			record.Timestamp = *info.BlockTime
		}
		records = append(records, record)
	}
	return r.enricher.Enrich(ctx, records)
}
