package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"VolunTrack-Agent/internal/solana"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

// Config 描述构建 Solana JSON-RPC 客户端所需的信息。
type Config struct {
	Cluster  string
	Endpoint string
	Timeout  time.Duration
	Notes    string
}

// Client 通过 HTTP 调用 Solana 节点的 JSON-RPC 接口。
type Client struct {
	cluster    string
	endpoint   string
	notes      string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewClient 根据配置创建 RPC 客户端。
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("未配置 Solana RPC 地址")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		cluster:  cfg.Cluster,
		endpoint: strings.TrimRight(endpoint, "/"),
		notes:    cfg.Notes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call 执行一次 JSON-RPC 请求并把 result 解析到 out。
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("序列化 RPC 请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建 RPC 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求 Solana 节点失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("节点返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("解析 RPC 响应失败: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("RPC 响应缺少 result 字段")
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("解析 result 失败: %w", err)
	}
	return nil
}

// GetBalance 查询地址的 lamports 余额。
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, errors.New("getBalance 需要提供地址")
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, fmt.Errorf("查询余额失败: %w", err)
	}
	return result.Value, nil
}

// GetSignaturesForAddress 按时间倒序返回地址最近的交易签名。
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("getSignaturesForAddress 需要提供地址")
	}
	if limit <= 0 {
		limit = 5
	}

	var raw []struct {
		Signature          string          `json:"signature"`
		Slot               uint64          `json:"slot"`
		BlockTime          *int64          `json:"blockTime"`
		Memo               *string         `json:"memo"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}
	params := []any{address, map[string]any{"limit": limit}}
	if err := c.call(ctx, "getSignaturesForAddress", params, &raw); err != nil {
		return nil, fmt.Errorf("查询签名列表失败: %w", err)
	}

	infos := make([]solana.SignatureInfo, 0, len(raw))
	for _, entry := range raw {
		info := solana.SignatureInfo{
			Signature:          entry.Signature,
			Slot:               entry.Slot,
			BlockTime:          entry.BlockTime,
			ConfirmationStatus: entry.ConfirmationStatus,
			Failed:             len(entry.Err) > 0 && string(entry.Err) != "null",
		}
		if entry.Memo != nil {
			info.Memo = *entry.Memo
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetHealth 检查节点健康状态。
func (c *Client) GetHealth(ctx context.Context) error {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("节点状态异常: %s", status)
	}
	return nil
}

// Cluster 返回该客户端所属的集群名。
func (c *Client) Cluster() string {
	return c.cluster
}

// Close 释放客户端资源。HTTP 客户端没有需要主动关闭的连接。
func (c *Client) Close() {}
