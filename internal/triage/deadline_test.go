package triage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 固定基准时间：2025-06-11 周三 10:00
var baseTime = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

func TestExtractDeadlines(t *testing.T) {
	t.Run("解析星期名", func(t *testing.T) {
		out := ExtractDeadlines("please finish this by friday", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, "by friday", out[0].Context)
		// 基准为周三，下一个周五是 6/13
		assert.Equal(t, time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC), out[0].At)
	})

	t.Run("星期名已过时顺延到下周", func(t *testing.T) {
		out := ExtractDeadlines("report due monday", baseTime)

		require.Len(t, out, 1)
		// 周一已过，顺延到 6/16
		assert.Equal(t, time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC), out[0].At)
	})

	t.Run("解析today和tomorrow", func(t *testing.T) {
		out := ExtractDeadlines("need it by today or by tomorrow", baseTime)

		require.Len(t, out, 2)
		assert.Equal(t, baseTime, out[0].At)
		assert.Equal(t, baseTime.AddDate(0, 0, 1), out[1].At)
	})

	t.Run("解析MM/DD日期", func(t *testing.T) {
		out := ExtractDeadlines("submit by 12/25 please", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), out[0].At)
	})

	t.Run("已过去的日期顺延到明年", func(t *testing.T) {
		out := ExtractDeadlines("this was due 1/15", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), out[0].At)
	})

	t.Run("解析within小时", func(t *testing.T) {
		out := ExtractDeadlines("respond within 24 hours", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, baseTime.Add(24*time.Hour), out[0].At)
		assert.Equal(t, "within 24 hours", out[0].Context)
	})

	t.Run("解析within天数", func(t *testing.T) {
		out := ExtractDeadlines("complete within 3 days", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, baseTime.AddDate(0, 0, 3), out[0].At)
	})

	t.Run("解析end-of-week", func(t *testing.T) {
		out := ExtractDeadlines("wrap up by end of week", baseTime)

		require.Len(t, out, 1)
		// 本周五 23:59:59
		assert.Equal(t, time.Date(2025, 6, 13, 23, 59, 59, 0, time.UTC), out[0].At)
	})

	t.Run("解析end-of-month", func(t *testing.T) {
		out := ExtractDeadlines("budget due by end of month", baseTime)

		require.Len(t, out, 1)
		assert.Equal(t, time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC), out[0].At)
	})

	t.Run("无法解析的表达被跳过", func(t *testing.T) {
		out := ExtractDeadlines("by someday maybe, due 13/45", baseTime)

		assert.Empty(t, out)
	})

	t.Run("无截止时间返回空", func(t *testing.T) {
		out := ExtractDeadlines("just a friendly hello", baseTime)

		assert.Empty(t, out)
	})

	t.Run("绝对日期重新提取得到相同时间", func(t *testing.T) {
		// 把解析结果格式化回 "by MM/DD" 再提取，时间戳必须不变
		first := ExtractDeadlines("submit by 12/25 please", baseTime)
		require.Len(t, first, 1)

		rendered := fmt.Sprintf("by %d/%d", int(first[0].At.Month()), first[0].At.Day())
		second := ExtractDeadlines(rendered, baseTime)
		require.Len(t, second, 1)
		assert.Equal(t, first[0].At, second[0].At)

		// 顺延到明年的日期同样稳定
		first = ExtractDeadlines("this was due 1/15", baseTime)
		require.Len(t, first, 1)

		rendered = fmt.Sprintf("by %d/%d", int(first[0].At.Month()), first[0].At.Day())
		second = ExtractDeadlines(rendered, baseTime)
		require.Len(t, second, 1)
		assert.Equal(t, first[0].At, second[0].At)
	})

	t.Run("多个表达全部提取", func(t *testing.T) {
		out := ExtractDeadlines("draft by friday, final due 12/25, reply within 2 days", baseTime)

		assert.Len(t, out, 3)
	})
}

func TestParseMonthDay(t *testing.T) {
	t.Run("非法月份或日期", func(t *testing.T) {
		_, ok := parseMonthDay("13/1", baseTime)
		assert.False(t, ok)

		_, ok = parseMonthDay("1/32", baseTime)
		assert.False(t, ok)

		_, ok = parseMonthDay("abc", baseTime)
		assert.False(t, ok)
	})
}
