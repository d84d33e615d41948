package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/nlu"
)

// ErrAmbiguousInstruction 指令无法解析出任何可用的检索条件
var ErrAmbiguousInstruction = errors.New("instruction too ambiguous to resolve")

// CriteriaService 把自然语言指令解析为结构化检索条件。
//
// 主路径走外部补全服务；外部调用失败或返回不可解析内容时，
// 降级到确定性的正则解析。两条路径产出的条件都要经过
// "仅按发件人"修复校验。
type CriteriaService struct {
	completer nlu.Completer
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewCriteriaService 创建指令解析服务。
func NewCriteriaService(completer nlu.Completer, metrics *monitoring.Metrics, log *zap.Logger) *CriteriaService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CriteriaService{
		completer: completer,
		metrics:   metrics,
		log:       log,
	}
}

const extractPromptTemplate = `Convert the email instruction into JSON with keys:
sender, subject, content, window (one of "", "today", "yesterday", "last_days", "older_days"),
windowDays (int), unread (bool or null), count (int or null).
Rules:
- If the only identifying clause is "from X", set sender to X and leave subject and content empty.
- "last N" / "first N" / "N emails" sets count to N; the word "all" with no number leaves count null.
- Respond with the JSON object only, no prose.
Instruction: %q`

// Extract 解析一条指令。
func (s *CriteriaService) Extract(ctx context.Context, instruction string) (domain.SearchCriteria, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return domain.SearchCriteria{}, ErrAmbiguousInstruction
	}

	criteria, ok := s.extractViaNLU(ctx, instruction)
	if !ok {
		if s.metrics != nil {
			s.metrics.FallbackParsesTotal.Inc()
		}
		criteria = fallbackParse(instruction)
	}

	// 不信任上游：纯发件人指令不允许携带主题/正文条件
	criteria.RepairSenderOnly(instruction)

	if criteria.Empty() {
		return domain.SearchCriteria{}, ErrAmbiguousInstruction
	}
	return criteria, nil
}

// extractViaNLU 尝试通过补全服务解析指令，任何失败都只返回 ok=false。
func (s *CriteriaService) extractViaNLU(ctx context.Context, instruction string) (domain.SearchCriteria, bool) {
	if s.completer == nil {
		return domain.SearchCriteria{}, false
	}

	raw, err := s.completer.Complete(ctx, fmt.Sprintf(extractPromptTemplate, instruction))
	if err != nil {
		s.log.Debug("nlu extraction failed, using fallback", zap.Error(err))
		return domain.SearchCriteria{}, false
	}

	criteria, err := parseCriteriaJSON(raw)
	if err != nil {
		// JSON 整体不可用时逐字段抢救
		criteria, ok := recoverCriteriaFields(raw)
		if !ok {
			s.log.Debug("nlu returned unparseable criteria, using fallback",
				zap.String("raw", raw), zap.Error(err))
			return domain.SearchCriteria{}, false
		}
		return criteria, true
	}
	return criteria, true
}

// parseCriteriaJSON 宽松解析模型输出：先整体解析，
// 失败时截取首个 { 到最后一个 } 之间的片段再试。
func parseCriteriaJSON(raw string) (domain.SearchCriteria, error) {
	raw = strings.TrimSpace(raw)

	var criteria domain.SearchCriteria
	if err := json.Unmarshal([]byte(raw), &criteria); err == nil {
		return criteria, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return domain.SearchCriteria{}, errors.New("no JSON object in response")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &criteria); err != nil {
		return domain.SearchCriteria{}, err
	}
	return criteria, nil
}

// 从残缺的模型输出里逐字段提取键值
var (
	rawStringFieldPattern = regexp.MustCompile(`"(sender|subject|content|window)"\s*:\s*"([^"]+)"`)
	rawCountFieldPattern  = regexp.MustCompile(`"count"\s*:\s*(\d+)`)
	rawUnreadFieldPattern = regexp.MustCompile(`"unread"\s*:\s*(true|false)`)
)

// recoverCriteriaFields 对截断或混入杂质的模型输出做逐字段提取。
// 只要抢救出任何一个字段就算成功，剩余字段留空。
func recoverCriteriaFields(raw string) (domain.SearchCriteria, bool) {
	var criteria domain.SearchCriteria
	recovered := false

	for _, m := range rawStringFieldPattern.FindAllStringSubmatch(raw, -1) {
		switch m[1] {
		case "sender":
			criteria.Sender = m[2]
		case "subject":
			criteria.Subject = m[2]
		case "content":
			criteria.Content = m[2]
		case "window":
			criteria.Window = domain.TimeWindow(m[2])
		}
		recovered = true
	}

	if m := rawCountFieldPattern.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			criteria.Count = &n
			recovered = true
		}
	}

	if m := rawUnreadFieldPattern.FindStringSubmatch(raw); m != nil {
		unread := m[1] == "true"
		criteria.Unread = &unread
		recovered = true
	}

	return criteria, recovered
}

var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`last (\d+)`),
	regexp.MustCompile(`first (\d+)`),
	regexp.MustCompile(`(\d+) (?:emails?|messages?)`),
	regexp.MustCompile(`(\d+) most recent`),
}

// senderStopWords 这些词出现在 from 之后时不属于发件人
var senderStopWords = map[string]struct{}{
	"to": {}, "the": {}, "trash": {}, "in": {}, "my": {}, "inbox": {},
	"today": {}, "yesterday": {}, "last": {}, "this": {}, "all": {}, "unread": {},
}

// fallbackParse 确定性的指令解析，不依赖任何外部服务。
func fallbackParse(instruction string) domain.SearchCriteria {
	lower := strings.ToLower(instruction)
	var criteria domain.SearchCriteria

	// 数量："last N" / "first N" / "N emails"；"all" 且无数字表示不限定
	for _, p := range countPatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				criteria.Count = &n
			}
			break
		}
	}

	// 发件人：取 "from" 之后的第一个非停用词
	if idx := strings.LastIndex(lower, "from"); idx >= 0 {
		rest := strings.Fields(lower[idx+len("from"):])
		if len(rest) > 0 {
			word := rest[0]
			if _, stop := senderStopWords[word]; !stop {
				criteria.Sender = strings.Trim(word, `.,!?"'`)
			}
		}
	}

	// 时间范围
	switch {
	case strings.Contains(lower, "yesterday"):
		criteria.Window = domain.WindowYesterday
	case strings.Contains(lower, "today"):
		criteria.Window = domain.WindowToday
	case strings.Contains(lower, "this week"), strings.Contains(lower, "last week"):
		criteria.Window = domain.WindowLastDays
		criteria.WindowDays = 7
	case strings.Contains(lower, "this month"), strings.Contains(lower, "last month"):
		criteria.Window = domain.WindowLastDays
		criteria.WindowDays = 30
	}

	// 未读
	if strings.Contains(lower, "unread") {
		unread := true
		criteria.Unread = &unread
	}

	return criteria
}
