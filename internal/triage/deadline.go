package triage

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Deadline 从正文中提取到的一个截止时间及其上下文片段。
type Deadline struct {
	At      time.Time
	Context string // 命中的原文片段，如 "by friday"
}

// 截止时间表达式，全部在小写文本上匹配。
var (
	byDayPattern     = regexp.MustCompile(`by (\w+day|today|tomorrow)`)
	byDatePattern    = regexp.MustCompile(`by (\d{1,2}/\d{1,2})`)
	dueDayPattern    = regexp.MustCompile(`due (\w+day|today|tomorrow)`)
	dueDatePattern   = regexp.MustCompile(`due (\d{1,2}/\d{1,2})`)
	beforeDayPattern = regexp.MustCompile(`before (\w+day)`)
	endOfPattern     = regexp.MustCompile(`by end of (\w+)`)
	withinPattern    = regexp.MustCompile(`within (\d+) (hours?|days?)`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ExtractDeadlines 从文本中提取所有可识别的截止时间。
//
// 支持的表达："by friday"、"due 12/25"、"before monday"、
// "by end of week"、"within 24 hours" 等。无法解析的表达被跳过，
// 不影响其它命中。
func ExtractDeadlines(text string, now time.Time) []Deadline {
	lower := strings.ToLower(text)
	var out []Deadline

	appendDay := func(matches [][]string) {
		for _, m := range matches {
			if at, ok := parseWeekday(m[1], now); ok {
				out = append(out, Deadline{At: at, Context: m[0]})
			}
		}
	}

	appendDay(byDayPattern.FindAllStringSubmatch(lower, -1))
	appendDay(dueDayPattern.FindAllStringSubmatch(lower, -1))
	appendDay(beforeDayPattern.FindAllStringSubmatch(lower, -1))

	for _, m := range byDatePattern.FindAllStringSubmatch(lower, -1) {
		if at, ok := parseMonthDay(m[1], now); ok {
			out = append(out, Deadline{At: at, Context: m[0]})
		}
	}
	for _, m := range dueDatePattern.FindAllStringSubmatch(lower, -1) {
		if at, ok := parseMonthDay(m[1], now); ok {
			out = append(out, Deadline{At: at, Context: m[0]})
		}
	}

	for _, m := range endOfPattern.FindAllStringSubmatch(lower, -1) {
		if at, ok := parseEndOf(m[1], now); ok {
			out = append(out, Deadline{At: at, Context: m[0]})
		}
	}

	for _, m := range withinPattern.FindAllStringSubmatch(lower, -1) {
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		var at time.Time
		if strings.HasPrefix(m[2], "hour") {
			at = now.Add(time.Duration(amount) * time.Hour)
		} else {
			at = now.AddDate(0, 0, amount)
		}
		out = append(out, Deadline{At: at, Context: m[0]})
	}

	return out
}

// parseWeekday 将星期名解析为下一个对应日期；"today"/"tomorrow" 直接换算。
// 目标星期与今天相同或已过时取下周。
func parseWeekday(name string, now time.Time) (time.Time, bool) {
	switch name {
	case "today":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	}

	target, ok := weekdays[name]
	if !ok {
		return time.Time{}, false
	}

	daysAhead := int(target) - int(now.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7
	}
	return now.AddDate(0, 0, daysAhead), true
}

// parseMonthDay 解析 MM/DD 格式，默认当年，已过去则顺延到明年。
func parseMonthDay(s string, now time.Time) (time.Time, bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	at := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if at.Before(now) {
		at = time.Date(now.Year()+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
	}
	return at, true
}

// parseEndOf 解析 "end of day/week/month"。周末以周五为准。
func parseEndOf(period string, now time.Time) (time.Time, bool) {
	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}

	switch period {
	case "day", "today":
		return endOfDay(now), true
	case "week":
		daysUntilFriday := int(time.Friday) - int(now.Weekday())
		if daysUntilFriday < 0 {
			daysUntilFriday += 7
		}
		return endOfDay(now.AddDate(0, 0, daysUntilFriday)), true
	case "month":
		firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		return endOfDay(firstOfNext.AddDate(0, 0, -1)), true
	}
	return time.Time{}, false
}
