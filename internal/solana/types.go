package solana

import "context"

// SignatureInfo 描述链上返回的一条交易签名摘要。
// BlockTime 可能为空，节点对较老的区块不保留时间戳。
type SignatureInfo struct {
	Signature          string `json:"signature"`
	Slot               uint64 `json:"slot"`
	BlockTime          *int64 `json:"blockTime"`
	Memo               string `json:"memo,omitempty"`
	ConfirmationStatus string `json:"confirmationStatus,omitempty"`
	Failed             bool   `json:"failed,omitempty"`
}

// Client 定义了上层组件访问 Solana 节点所需的最小接口。
// 监控场景只读不写：余额、签名列表与健康检查。
type Client interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	GetHealth(ctx context.Context) error
	Cluster() string
	Close()
}
