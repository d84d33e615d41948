package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/backend/internal/domain"
)

func newTestScorer() *Scorer {
	return NewScorer(40, 48*time.Hour)
}

func TestScorerScore(t *testing.T) {
	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

	t.Run("普通邮件得分为零", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "newsletter@example.com",
			Subject: "Weekly digest",
			Snippet: "Here is what happened this week.",
		}

		sig := newTestScorer().Score(msg, nil, now)

		assert.Equal(t, 0, sig.Score)
		assert.False(t, sig.IsUrgent)
		assert.Empty(t, sig.Reasons)
		assert.Equal(t, "无明显紧急信号", sig.Summary())
	})

	t.Run("高优先级关键词只计一次", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "urgent and critical issue",
		}

		sig := newTestScorer().Score(msg, nil, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "keyword", sig.Reasons[0].Name)
		assert.Equal(t, 30, sig.Score)
	})

	t.Run("行动请求至多计两次", func(t *testing.T) {
		msg := &domain.Message{
			Sender:   "a@example.com",
			Subject:  "question",
			BodyText: "please review this, please confirm receipt, can you also check?",
		}

		sig := newTestScorer().Score(msg, nil, now)

		actions := 0
		for _, r := range sig.Reasons {
			if r.Name == "action" {
				actions++
			}
		}
		assert.Equal(t, 2, actions)
		assert.Equal(t, 30, sig.Score)
	})

	t.Run("达到阈值判定为紧急", func(t *testing.T) {
		msg := &domain.Message{
			Sender:   "boss@example.com",
			Subject:  "urgent: need your input",
			BodyText: "please respond today",
		}

		sig := newTestScorer().Score(msg, nil, now)

		// keyword(30) + time_sensitive(20) + action(15)
		assert.True(t, sig.IsUrgent)
		assert.GreaterOrEqual(t, sig.Score, 40)
	})

	t.Run("得分钳制在100以内", func(t *testing.T) {
		msg := &domain.Message{
			Sender:     "ceo@legal.example.com",
			SenderName: "CEO Jane",
			Subject:    "[URGENT] RESPOND!! urgent deadline today by tomorrow",
			BodyText:   "please review and please confirm within 2 hours, following up again",
		}

		sig := newTestScorer().Score(msg, nil, now)

		assert.Equal(t, 100, sig.Score)
		assert.True(t, sig.IsUrgent)
	})

	t.Run("VIP发件人加50分", func(t *testing.T) {
		patterns := []domain.SenderPattern{{
			PatternType:  domain.PatternTypeSender,
			PatternValue: "boss.example.com",
			IsVIP:        true,
		}}
		msg := &domain.Message{
			Sender:  "jane@boss.example.com",
			Subject: "quick question",
		}

		sig := newTestScorer().Score(msg, patterns, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "vip_sender", sig.Reasons[0].Name)
		assert.Equal(t, 50, sig.Score)
		assert.True(t, sig.IsUrgent)
	})

	t.Run("发件人正向信号只取最高一项", func(t *testing.T) {
		// 同时命中 VIP 与头衔，只应计 VIP 的 50 分
		patterns := []domain.SenderPattern{{
			PatternType:  domain.PatternTypeSender,
			PatternValue: "example.com",
			IsVIP:        true,
		}}
		msg := &domain.Message{
			Sender:     "director@example.com",
			SenderName: "Director Smith",
			Subject:    "hello",
		}

		sig := newTestScorer().Score(msg, patterns, now)

		assert.Equal(t, 50, sig.Score)
	})

	t.Run("重要头衔加40分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:     "jane@example.com",
			SenderName: "Jane (VP of Sales)",
			Subject:    "hello",
		}

		sig := newTestScorer().Score(msg, nil, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "sender_title", sig.Reasons[0].Name)
		assert.Equal(t, 40, sig.Score)
	})

	t.Run("敏感业务域加30分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "noreply@legal.example.com",
			Subject: "notice",
		}

		sig := newTestScorer().Score(msg, nil, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "sensitive_domain", sig.Reasons[0].Name)
		assert.Equal(t, 30, sig.Score)
	})

	t.Run("历史高频紧急发件人加35分", func(t *testing.T) {
		patterns := []domain.SenderPattern{{
			PatternType:          domain.PatternTypeSender,
			PatternValue:         "ops.example.com",
			TimesMarkedUrgent:    7,
			TimesMarkedNotUrgent: 2,
		}}
		msg := &domain.Message{
			Sender:  "alerts@ops.example.com",
			Subject: "nightly report",
		}

		sig := newTestScorer().Score(msg, patterns, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "frequent_urgent", sig.Reasons[0].Name)
		assert.Equal(t, 35, sig.Score)
	})

	t.Run("忽略发件人压制紧急判定", func(t *testing.T) {
		patterns := []domain.SenderPattern{{
			PatternType:  domain.PatternTypeSender,
			PatternValue: "spam.example.com",
			IsIgnored:    true,
		}}
		msg := &domain.Message{
			Sender:   "deals@spam.example.com",
			Subject:  "URGENT!! deadline today",
			BodyText: "please respond, act now",
		}

		sig := newTestScorer().Score(msg, patterns, now)

		assert.Equal(t, 0, sig.Score)
		assert.False(t, sig.IsUrgent)
	})

	t.Run("忽略发件人压制任意强度的正向信号", func(t *testing.T) {
		// 正向信号合计远超 100 分，忽略标记仍必须压回非紧急
		patterns := []domain.SenderPattern{{
			PatternType:  domain.PatternTypeSender,
			PatternValue: "spam.example.com",
			IsIgnored:    true,
		}}
		msg := &domain.Message{
			Sender:   "deals@spam.example.com",
			Subject:  "Re: Re: [URGENT] RESPOND!! urgent deadline today",
			BodyText: "please review and please confirm within 2 hours, following up again",
		}

		sig := newTestScorer().Score(msg, patterns, now)

		assert.Equal(t, 0, sig.Score)
		assert.False(t, sig.IsUrgent)
	})

	t.Run("主题全大写单词加10分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "PLEASE read this",
		}

		sig := newTestScorer().Score(msg, nil, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "caps_subject", sig.Reasons[0].Name)
	})

	t.Run("两字符大写单词不计分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "OK to join the meeting",
		}

		sig := newTestScorer().Score(msg, nil, now)

		assert.Equal(t, 0, sig.Score)
	})

	t.Run("主题优先级标签加20分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "[Important] server notice",
		}

		sig := newTestScorer().Score(msg, nil, now)

		found := false
		for _, r := range sig.Reasons {
			if r.Name == "priority_tag" {
				found = true
				assert.Equal(t, 20, r.Points)
			}
		}
		assert.True(t, found)
	})

	t.Run("窗口内截止时间加25分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:   "a@example.com",
			Subject:  "report",
			BodyText: "please send it within 12 hours",
		}

		sig := newTestScorer().Score(msg, nil, now)

		found := false
		for _, r := range sig.Reasons {
			if r.Name == "deadline" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("窗口外截止时间不计分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:   "a@example.com",
			Subject:  "report",
			BodyText: "submit the draft by 12/25",
		}

		sig := newTestScorer().Score(msg, nil, now)

		for _, r := range sig.Reasons {
			assert.NotEqual(t, "deadline", r.Name)
		}
	})

	t.Run("多次往返回复加15分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "Re: Re: contract question",
		}

		sig := newTestScorer().Score(msg, nil, now)

		require.Len(t, sig.Reasons, 1)
		assert.Equal(t, "thread_pingpong", sig.Reasons[0].Name)
		assert.Equal(t, 15, sig.Score)
	})

	t.Run("单次回复不计分", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "Re: contract question",
		}

		sig := newTestScorer().Score(msg, nil, now)

		assert.Equal(t, 0, sig.Score)
	})

	t.Run("正文缺失时使用摘要", func(t *testing.T) {
		msg := &domain.Message{
			Sender:  "a@example.com",
			Subject: "meeting",
			Snippet: "this is urgent, please respond",
		}

		sig := newTestScorer().Score(msg, nil, now)

		assert.GreaterOrEqual(t, sig.Score, 30)
	})
}

func TestSignalSummary(t *testing.T) {
	sig := domain.UrgencySignal{
		Reasons: []domain.SignalReason{
			{Name: "keyword", Points: 30, Evidence: "高优先级关键词: urgent"},
			{Name: "ignored_sender", Points: -100, Evidence: "已忽略的发件人"},
		},
	}

	assert.Equal(t, "高优先级关键词: urgent(+30); 已忽略的发件人(-100)", sig.Summary())
}
