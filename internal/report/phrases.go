package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Phrases 收录报告生成使用的全部乌克兰语固定文案。
// 默认值内置在二进制里；部署方可以用 JSON 文件覆盖其中任意字段。
type Phrases struct {
	// CannedSummary 在两种场景使用：还没有任何链上活动时，
	// 以及生成服务失败需要兜底时。文案对两种场景都成立。
	CannedSummary string `json:"canned_summary"`
	// EmptyInsight 是空活动分支附带的唯一一条操作提示。
	EmptyInsight string `json:"empty_insight"`
	// MissingCredentialSummary 提示运维方配置生成服务凭证。
	MissingCredentialSummary string `json:"missing_credential_summary"`
	// AIInsight 标注摘要由生成服务产出。
	AIInsight string `json:"ai_insight"`
	// EstimateNote 是带一个 %.2f 占位符的估值补充句。
	EstimateNote string `json:"estimate_note"`
	// SystemPrompt 是发送给生成服务的固定系统设定。
	SystemPrompt string `json:"system_prompt"`
}

// DefaultPhrases 返回内置文案。
func DefaultPhrases() Phrases {
	return Phrases{
		CannedSummary: "ШІ тимчасово недоступний, але логіка моніторингу активна. " +
			"VolunTrack показує прозорість казначейства для волонтерів: баланс та " +
			"орієнтовний обмін на USDC доступні. Підключіть гаманець та виконайте " +
			"транзакції для повних звітів.",
		EmptyInsight: "Надішліть тестову транзакцію на гаманець, щоб вона з'явилася у звіті.",
		MissingCredentialSummary: "Щоб увімкнути ШІ-звіти, додайте ключ GENERATION_API_KEY " +
			"до конфігурації. Моніторинг транзакцій та оцінка обміну працюють без нього.",
		AIInsight:    "Звіт згенеровано за допомогою ШІ.",
		EstimateNote: "Орієнтовна вартість обміну становить %.2f USDC.",
		SystemPrompt: "Ти — фінансовий асистент казначейства для українських волонтерів. " +
			"Відповідай українською мовою, коротко та зрозуміло для людей без фінансової освіти.",
	}
}

// LoadPhrases 从 JSON 文件加载文案覆盖，未填写的字段保留默认值。
func LoadPhrases(path string) (Phrases, error) {
	phrases := DefaultPhrases()
	if strings.TrimSpace(path) == "" {
		return phrases, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Phrases{}, fmt.Errorf("读取文案文件失败: %w", err)
	}

	var overrides Phrases
	if err := json.Unmarshal(content, &overrides); err != nil {
		return Phrases{}, fmt.Errorf("解析文案文件失败: %w", err)
	}

	if overrides.CannedSummary != "" {
		phrases.CannedSummary = overrides.CannedSummary
	}
	if overrides.EmptyInsight != "" {
		phrases.EmptyInsight = overrides.EmptyInsight
	}
	if overrides.MissingCredentialSummary != "" {
		phrases.MissingCredentialSummary = overrides.MissingCredentialSummary
	}
	if overrides.AIInsight != "" {
		phrases.AIInsight = overrides.AIInsight
	}
	if overrides.EstimateNote != "" {
		phrases.EstimateNote = overrides.EstimateNote
	}
	if overrides.SystemPrompt != "" {
		phrases.SystemPrompt = overrides.SystemPrompt
	}
	return phrases, nil
}
