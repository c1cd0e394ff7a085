package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"VolunTrack-Agent/internal/activity"
	xerrors "VolunTrack-Agent/internal/errors"
	"VolunTrack-Agent/internal/llm"
	"VolunTrack-Agent/pkg/logger"
)

// defaultPeriodLabel 在调用方未提供报告周期标签时使用。
const defaultPeriodLabel = "Останні транзакції"

// signatureDisplayLen 是提示词里签名展示的截断长度。
const signatureDisplayLen = 8

// Result 表示一份生成完毕的报告。
type Result struct {
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
	Period   string   `json:"period"`
}

// Generator 持有文本生成客户端与分级降级策略。
// client 为 nil 表示未配置凭证，会走专门的提示分支。
type Generator struct {
	client        llm.Client
	phrases       Phrases
	defaultPeriod string
	log           *slog.Logger
}

// Option 定义可选的 Generator 配置。
type Option func(*Generator)

// WithPhrases 覆盖默认文案。
func WithPhrases(p Phrases) Option {
	return func(g *Generator) {
		g.phrases = p
	}
}

// WithDefaultPeriod 设置默认的报告周期标签。
func WithDefaultPeriod(label string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(label) != "" {
			g.defaultPeriod = label
		}
	}
}

// NewGenerator 创建报告生成器。client 传 nil 表示没有可用凭证。
func NewGenerator(client llm.Client, opts ...Option) *Generator {
	g := &Generator{
		client:        client,
		phrases:       DefaultPhrases(),
		defaultPeriod: defaultPeriodLabel,
		log:           logger.Named("report"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate 按四级决策生成报告，每次调用恰好走其中一条路径：
//  1. 没有活动记录 → 内置文案（估值为正时附加一句估值说明），一条操作提示；
//  2. 有记录但没有凭证 → 提示配置凭证，无 insights；
//  3. 有记录且有凭证 → 构建提示词并调用一次生成服务；
//     调用失败、超时或返回空文本 → 退回内置文案，无 insights；
//  4. 调用成功 → 原样返回生成文本，附一条 ШІ 标注。
//
// 与报价服务同样的契约：任何情况下都返回非空的乌克兰语摘要，绝不抛错。
func (g *Generator) Generate(ctx context.Context, records []activity.Record, periodLabel string, estimateUSDC float64) Result {
	period := strings.TrimSpace(periodLabel)
	if period == "" {
		period = g.defaultPeriod
	}

	if len(records) == 0 {
		summary := g.phrases.CannedSummary
		if estimateUSDC > 0 {
			summary += " " + fmt.Sprintf(g.phrases.EstimateNote, estimateUSDC)
		}
		return Result{
			Summary:  summary,
			Insights: []string{g.phrases.EmptyInsight},
			Period:   period,
		}
	}

	if g.client == nil {
		g.log.Info("未配置生成服务凭证，返回提示文案",
			slog.String("code", string(xerrors.CodeMissingCredential)),
		)
		return Result{
			Summary:  g.phrases.MissingCredentialSummary,
			Insights: []string{},
			Period:   period,
		}
	}

	resp, err := g.client.Generate(ctx, llm.Request{
		System: g.phrases.SystemPrompt,
		Prompt: g.buildPrompt(records, period, estimateUSDC),
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Text) == "" {
		g.log.Warn("生成服务不可用，使用兜底文案",
			slog.Any("error", xerrors.Wrap(xerrors.CodeGenerationUnavailable, err, "")),
		)
		return Result{
			Summary:  g.phrases.CannedSummary,
			Insights: []string{},
			Period:   period,
		}
	}

	return Result{
		Summary:  strings.TrimSpace(resp.Text),
		Insights: []string{g.phrases.AIInsight},
		Period:   period,
	}
}

// buildPrompt 把活动记录拼装成自然语言提示词。
func (g *Generator) buildPrompt(records []activity.Record, period string, estimateUSDC float64) string {
	var builder strings.Builder
	builder.WriteString("Підготуй короткий фінансовий звіт казначейства за період \"")
	builder.WriteString(period)
	builder.WriteString("\".\n\nОстанні транзакції гаманця:\n")

	for idx, record := range records {
		builder.WriteString(fmt.Sprintf("%d. %s — %s\n",
			idx+1,
			truncateSignature(record.Signature),
			formatDate(record.Timestamp),
		))
	}

	if estimateUSDC > 0 {
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf(g.phrases.EstimateNote, estimateUSDC))
		builder.WriteString("\n")
	}

	builder.WriteString("\nНапиши 2-3 речення підсумку для донорів та волонтерів.")
	return builder.String()
}

func truncateSignature(signature string) string {
	if len(signature) <= signatureDisplayLen {
		return signature
	}
	return signature[:signatureDisplayLen] + "…"
}

// formatDate 以 дд.мм.рррр 呈现区块时间；时间缺失时返回占位符。
func formatDate(timestamp int64) string {
	if timestamp <= 0 {
		return "дата невідома"
	}
	return time.Unix(timestamp, 0).UTC().Format("02.01.2006")
}
