package triage

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"inboxpilot/backend/internal/domain"
)

// Scorer 基于规则的紧急度评分器。
//
// 纯计算组件，不做任何 IO：输入邮件与发件人模式快照，输出评分结果。
// 评分采取宽松策略（宁可多报不可漏报），得分区间 [0,100]。
type Scorer struct {
	threshold      int           // 紧急判定阈值
	deadlineWindow time.Duration // 截止时间临近窗口
}

// NewScorer 创建评分器。
func NewScorer(threshold int, deadlineWindow time.Duration) *Scorer {
	return &Scorer{threshold: threshold, deadlineWindow: deadlineWindow}
}

var priorityTagPattern = regexp.MustCompile(`\[(urgent|important|action|priority)\]`)

// Score 计算一封邮件的紧急度得分。
//
// patterns 是该用户发件人模式的只读快照；now 由调用方注入，
// 评分过程中所有时间判断均以 now 为准。
func (s *Scorer) Score(msg *domain.Message, patterns []domain.SenderPattern, now time.Time) domain.UrgencySignal {
	var reasons []domain.SignalReason
	score := 0

	hit := func(name string, points int, evidence string) {
		score += points
		reasons = append(reasons, domain.SignalReason{Name: name, Points: points, Evidence: evidence})
	}

	// 主题与正文合并后做内容匹配（正文缺失时用摘要兜底）
	body := msg.BodyText
	if body == "" {
		body = msg.Snippet
	}
	content := strings.ToLower(msg.Subject + " " + body)

	// 1. 高优先级关键词，只计一次
	for _, kw := range highPriorityKeywords {
		if strings.Contains(content, kw) {
			hit("keyword", 30, "高优先级关键词: "+kw)
			break
		}
	}

	// 2. 时间敏感关键词，只计一次
	for _, kw := range timeSensitiveKeywords {
		if strings.Contains(content, kw) {
			hit("time_sensitive", 20, "时间敏感词: "+kw)
			break
		}
	}

	// 3. 行动请求关键词，至多计两次
	actionCount := 0
	for _, kw := range actionKeywords {
		if actionCount >= 2 {
			break
		}
		if strings.Contains(content, kw) {
			hit("action", 15, "行动请求: "+kw)
			actionCount++
		}
	}

	// 4. 跟进提醒，只计一次
	for _, kw := range followupKeywords {
		if strings.Contains(content, kw) {
			hit("followup", 15, "跟进提醒: "+kw)
			break
		}
	}

	// 5. 发件人重要性：正向信号只取最高一项；忽略标记绝对生效
	if r, ok := s.senderSignal(msg.Sender, msg.SenderName, patterns); ok {
		score += r.Points
		reasons = append(reasons, r)
	}
	ignored := ignoredSender(msg.Sender, patterns)
	if ignored {
		hit("ignored_sender", -100, "已忽略的发件人")
	}

	// 6. 主题形式信号
	if hasAllCapsWord(msg.Subject) {
		hit("caps_subject", 10, "主题含全大写单词")
	}
	if strings.Contains(msg.Subject, "!!") {
		hit("exclamation", 10, "主题含连续感叹号")
	}
	subjectLower := strings.ToLower(msg.Subject)
	if priorityTagPattern.MatchString(subjectLower) {
		hit("priority_tag", 20, "主题含优先级标签")
	}

	// 7. 截止时间临近，只计一次
	for _, d := range ExtractDeadlines(content, now) {
		if d.At.Sub(now) <= s.deadlineWindow {
			hit("deadline", 25, "截止时间临近: "+d.Context)
			break
		}
	}

	// 8. 多次往返回复，可能是升级中的线程
	if strings.HasPrefix(subjectLower, "re:") {
		if n := strings.Count(subjectLower, "re:"); n >= 2 {
			hit("thread_pingpong", 15, fmt.Sprintf("多次往返回复(%d)", n))
		}
	}

	// 钳制到 [0,100]
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	// 忽略标记不参与加减抵消：无论正向信号多强，得分压到零
	if ignored {
		score = 0
	}

	return domain.UrgencySignal{
		Score:     score,
		Reasons:   reasons,
		IsUrgent:  !ignored && score >= s.threshold,
		Threshold: s.threshold,
	}
}

// senderSignal 计算发件人的正向重要性信号，按优先级只返回最高一项：
// VIP(50) > 重要头衔(40) > 历史高频紧急(35) > 敏感业务域(30)。
func (s *Scorer) senderSignal(sender, senderName string, patterns []domain.SenderPattern) (domain.SignalReason, bool) {
	if sender == "" {
		return domain.SignalReason{}, false
	}

	senderLower := strings.ToLower(sender)
	nameLower := strings.ToLower(senderName)

	for _, p := range patterns {
		if p.IsVIP && p.PatternType == domain.PatternTypeSender &&
			strings.Contains(senderLower, strings.ToLower(p.PatternValue)) {
			display := senderName
			if display == "" {
				display = sender
			}
			return domain.SignalReason{Name: "vip_sender", Points: 50, Evidence: "VIP 发件人: " + display}, true
		}
	}

	for _, title := range importantTitles {
		if strings.Contains(nameLower, title) || strings.Contains(senderLower, title) {
			return domain.SignalReason{Name: "sender_title", Points: 40, Evidence: "重要发件人头衔: " + title}, true
		}
	}

	for _, p := range patterns {
		if p.PatternType == domain.PatternTypeSender &&
			strings.Contains(senderLower, strings.ToLower(p.PatternValue)) &&
			p.FrequentlyUrgent() {
			return domain.SignalReason{Name: "frequent_urgent", Points: 35, Evidence: "历史高频紧急发件人"}, true
		}
	}

	for _, d := range sensitiveDomains {
		if strings.Contains(senderLower, d) {
			return domain.SignalReason{Name: "sensitive_domain", Points: 30, Evidence: "敏感业务域: " + d}, true
		}
	}

	return domain.SignalReason{}, false
}

// ignoredSender 判断发件人是否命中忽略模式。
func ignoredSender(sender string, patterns []domain.SenderPattern) bool {
	if sender == "" {
		return false
	}
	senderLower := strings.ToLower(sender)
	for _, p := range patterns {
		if p.IsIgnored && p.PatternType == domain.PatternTypeSender &&
			strings.Contains(senderLower, strings.ToLower(p.PatternValue)) {
			return true
		}
	}
	return false
}

// hasAllCapsWord 判断主题中是否存在长度大于 2 的全大写单词。
func hasAllCapsWord(subject string) bool {
	for _, word := range strings.Fields(subject) {
		if len(word) <= 2 {
			continue
		}
		hasLetter := false
		allUpper := true
		for _, r := range word {
			if unicode.IsLetter(r) {
				hasLetter = true
				if !unicode.IsUpper(r) {
					allUpper = false
					break
				}
			}
		}
		if hasLetter && allUpper {
			return true
		}
	}
	return false
}
