package domain

import "strings"

// TimeWindow 检索条件中的时间范围。
type TimeWindow string

const (
	WindowNone      TimeWindow = ""
	WindowToday     TimeWindow = "today"
	WindowYesterday TimeWindow = "yesterday"
	WindowLastDays  TimeWindow = "last_days"  // 最近 N 天，N 存于 WindowDays
	WindowOlderDays TimeWindow = "older_days" // N 天之前，N 存于 WindowDays
)

// SearchCriteria 自然语言指令解析出的结构化检索条件。
// 请求级临时对象，不落库。
type SearchCriteria struct {
	Sender     string     `json:"sender,omitempty"`  // 发件人子串（地址或显示名）
	Subject    string     `json:"subject,omitempty"` // 主题子串
	Content    string     `json:"content,omitempty"` // 正文子串
	Window     TimeWindow `json:"window,omitempty"`
	WindowDays int        `json:"windowDays,omitempty"`
	Unread     *bool      `json:"unread,omitempty"`
	Count      *int       `json:"count,omitempty"` // nil 表示未限定数量，由安全上限兜底
}

// Empty 判断条件是否完全为空（无法定位任何邮件）。
func (c *SearchCriteria) Empty() bool {
	return c.Sender == "" && c.Subject == "" && c.Content == "" &&
		c.Window == WindowNone && c.Unread == nil
}

// topicalWords 指令中出现这些词才允许携带主题/正文条件。
var topicalWords = []string{"about", "regarding", "subject", "containing", "mentioning"}

// HasTopicalClause 判断原始指令中是否存在主题类从句。
func HasTopicalClause(instruction string) bool {
	lower := strings.ToLower(instruction)
	for _, w := range topicalWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// RepairSenderOnly 校验并修复"仅按发件人"的指令被扩写成内容检索的情况。
//
// 指令里只有 "from X" 而没有任何主题类从句时，解析结果不允许携带
// Subject/Content 条件；这里直接清空而不是信任上游解析。
func (c *SearchCriteria) RepairSenderOnly(instruction string) {
	if c.Sender == "" {
		return
	}
	if HasTopicalClause(instruction) {
		return
	}
	c.Subject = ""
	c.Content = ""
}
