package llm

import "context"

// Request 描述发送给文本生成服务的上下文。
// 提示词本身由 report 包构建，这里只负责传输。
type Request struct {
	System string
	Prompt string
}

// Response 是文本生成服务返回的结果。
type Response struct {
	Text string
}

// Client 定义了调用文本生成服务的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
