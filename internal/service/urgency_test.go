package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage/memory"
	"inboxpilot/backend/internal/triage"
)

func newUrgencyHarness(store *memory.Store) *UrgencyService {
	return NewUrgencyService(store, triage.NewScorer(40, 48*time.Hour), nil, nil, nil)
}

func saveInboxMessage(t *testing.T, store *memory.Store, id, sender, subject string) {
	t.Helper()
	require.NoError(t, store.SaveMessage(&domain.Message{
		ID:         id,
		UserID:     "user-1",
		Sender:     sender,
		Subject:    subject,
		ReceivedAt: time.Now(),
	}))
}

func TestUrgencyClassify(t *testing.T) {
	t.Run("紧急邮件判定并落库", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "alerts@example.com", "URGENT: production outage")

		signal, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)
		// urgent(30) + 全大写单词(10)
		assert.Equal(t, 40, signal.Score)
		assert.True(t, signal.IsUrgent)

		got, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.True(t, got.IsUrgent)
		assert.Equal(t, 40, got.UrgencyScore)
		assert.NotEmpty(t, got.UrgencyReason)
		assert.NotNil(t, got.UrgencyAnalyzedAt)
	})

	t.Run("普通邮件不触发紧急判定", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "news@example.com", "Weekly newsletter")

		signal, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, 0, signal.Score)
		assert.False(t, signal.IsUrgent)

		got, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, "无明显紧急信号", got.UrgencyReason)
	})

	t.Run("不存在的邮件返回错误", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)

		_, err := svc.Classify("user-1", "missing")
		assert.Error(t, err)
	})
}

func TestUrgencyCorrection(t *testing.T) {
	t.Run("纠正建立域名模式并影响后续评分", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "promo@nike.com", "Sale this season")

		_, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)

		pattern, err := svc.RecordCorrection("user-1", "m1", true)
		require.NoError(t, err)
		assert.Equal(t, "nike.com", pattern.PatternValue)
		assert.Equal(t, 1, pattern.TimesMarkedUrgent)

		// 纠正后的判定立即写回，分数保留原值
		got, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.True(t, got.IsUrgent)
		assert.Equal(t, 0, got.UrgencyScore)

		// 同域名的新邮件命中"历史高频紧急"信号
		saveInboxMessage(t, store, "m2", "deals@nike.com", "Another sale")
		signal, err := svc.Classify("user-1", "m2")
		require.NoError(t, err)
		assert.Equal(t, 35, signal.Score)

		found := false
		for _, r := range signal.Reasons {
			if r.Name == "frequent_urgent" {
				found = true
			}
		}
		assert.True(t, found, "应当命中历史高频紧急信号")
	})

	t.Run("纠正为非紧急会压回判定", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "alerts@example.com", "URGENT: production outage")

		signal, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)
		require.True(t, signal.IsUrgent)

		pattern, err := svc.RecordCorrection("user-1", "m1", false)
		require.NoError(t, err)
		assert.Equal(t, 1, pattern.TimesMarkedNotUrgent)

		got, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.False(t, got.IsUrgent)
		assert.Equal(t, 40, got.UrgencyScore)
	})

	t.Run("VIP标记令发件人直接越过阈值", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "boss@nike.com", "Team lunch")

		pattern, err := store.UpsertPatternCount("user-1", domain.PatternTypeSender, "nike.com", true)
		require.NoError(t, err)
		_, err = svc.SetPatternFlags("user-1", pattern.ID, true, false)
		require.NoError(t, err)

		signal, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, 50, signal.Score)
		assert.True(t, signal.IsUrgent)
	})

	t.Run("忽略标记压制一切正向信号", func(t *testing.T) {
		store := memory.NewStore()
		svc := newUrgencyHarness(store)
		saveInboxMessage(t, store, "m1", "spam@nike.com", "URGENT: act now")

		pattern, err := store.UpsertPatternCount("user-1", domain.PatternTypeSender, "nike.com", true)
		require.NoError(t, err)
		_, err = svc.SetPatternFlags("user-1", pattern.ID, false, true)
		require.NoError(t, err)

		signal, err := svc.Classify("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, 0, signal.Score)
		assert.False(t, signal.IsUrgent)
	})
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "nike.com", senderDomain("promo@nike.com"))
	assert.Equal(t, "nike.com", senderDomain("Promo@NIKE.com"))
	assert.Equal(t, "no-at-sign", senderDomain("no-at-sign"))
}
