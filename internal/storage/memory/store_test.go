package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

var testNow = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

func seedMessage(t *testing.T, s *Store, id string, received time.Time, mutate func(*domain.Message)) {
	t.Helper()
	msg := &domain.Message{
		ID:         id,
		UserID:     "user-1",
		RemoteID:   "remote-" + id,
		Sender:     "alice@example.com",
		SenderName: "Alice",
		Subject:    "subject " + id,
		Snippet:    "snippet " + id,
		ReceivedAt: received,
	}
	if mutate != nil {
		mutate(msg)
	}
	require.NoError(t, s.SaveMessage(msg))
}

func TestMessageLifecycle(t *testing.T) {
	s := NewStore()

	t.Run("保存并读取邮件", func(t *testing.T) {
		seedMessage(t, s, "m1", testNow, nil)

		got, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Sender)
	})

	t.Run("读取不存在的邮件", func(t *testing.T) {
		_, err := s.GetMessage("user-1", "missing")
		assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	})

	t.Run("软删除同步标签", func(t *testing.T) {
		require.NoError(t, s.SetMessageTrashed("user-1", "m1", testNow))

		got, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.True(t, got.IsTrashed())
		assert.True(t, got.Labels.Contains(domain.TrashLabel))
	})

	t.Run("恢复移除软删除与标签", func(t *testing.T) {
		require.NoError(t, s.SetMessageRestored("user-1", "m1"))

		got, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.False(t, got.IsTrashed())
		assert.False(t, got.Labels.Contains(domain.TrashLabel))
	})

	t.Run("保存紧急度评估结果", func(t *testing.T) {
		require.NoError(t, s.SaveUrgency("user-1", "m1", 65, "高优先级关键词: urgent(+30)", true, testNow))

		got, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.Equal(t, 65, got.UrgencyScore)
		assert.True(t, got.IsUrgent)
		require.NotNil(t, got.UrgencyAnalyzedAt)
		assert.Equal(t, testNow, *got.UrgencyAnalyzedAt)
	})

	t.Run("返回的是副本", func(t *testing.T) {
		got, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		got.Subject = "mutated"

		again, err := s.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.Subject)
	})
}

func TestFindCandidates(t *testing.T) {
	s := NewStore()

	seedMessage(t, s, "m1", testNow.Add(-1*time.Hour), nil) // 今天
	seedMessage(t, s, "m2", testNow.Add(-26*time.Hour), func(m *domain.Message) { // 昨天
		m.Sender = "bob@other.com"
		m.SenderName = "Bob"
		m.Subject = "invoice for May"
		m.IsRead = true
	})
	seedMessage(t, s, "m3", testNow.AddDate(0, 0, -10), func(m *domain.Message) { // 10 天前
		m.BodyText = "the project budget needs review"
	})
	seedMessage(t, s, "m4", testNow, func(m *domain.Message) { // 已软删除
		m.MarkTrashed(testNow)
	})

	t.Run("排除已软删除邮件", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{}, testNow, 0)
		require.NoError(t, err)
		assert.Len(t, out, 3)
		for _, m := range out {
			assert.NotEqual(t, "m4", m.ID)
		}
	})

	t.Run("按接收时间倒序", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "m1", out[0].ID)
		assert.Equal(t, "m2", out[1].ID)
		assert.Equal(t, "m3", out[2].ID)
	})

	t.Run("按发件人过滤", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Sender: "bob"}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m2", out[0].ID)
	})

	t.Run("发件人匹配显示名", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Sender: "Alice"}, testNow, 0)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("按主题过滤", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Subject: "invoice"}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m2", out[0].ID)
	})

	t.Run("按正文过滤", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Content: "budget"}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m3", out[0].ID)
	})

	t.Run("按未读过滤", func(t *testing.T) {
		unread := true
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Unread: &unread}, testNow, 0)
		require.NoError(t, err)
		assert.Len(t, out, 2) // m2 已读被排除
	})

	t.Run("今天窗口", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Window: domain.WindowToday}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m1", out[0].ID)
	})

	t.Run("昨天窗口", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Window: domain.WindowYesterday}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m2", out[0].ID)
	})

	t.Run("最近N天窗口", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Window: domain.WindowLastDays, WindowDays: 3}, testNow, 0)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("N天之前窗口", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{Window: domain.WindowOlderDays, WindowDays: 3}, testNow, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "m3", out[0].ID)
	})

	t.Run("限制返回数量", func(t *testing.T) {
		out, err := s.FindCandidates("user-1", domain.SearchCriteria{}, testNow, 2)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestPatternRepository(t *testing.T) {
	s := NewStore()

	t.Run("首次纠正创建模式", func(t *testing.T) {
		p, err := s.UpsertPatternCount("user-1", domain.PatternTypeSender, "boss.example.com", true)
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, 1, p.TimesMarkedUrgent)
		assert.Equal(t, 0, p.TimesMarkedNotUrgent)
	})

	t.Run("再次纠正累加计数", func(t *testing.T) {
		p, err := s.UpsertPatternCount("user-1", domain.PatternTypeSender, "boss.example.com", false)
		require.NoError(t, err)
		assert.Equal(t, 1, p.TimesMarkedUrgent)
		assert.Equal(t, 1, p.TimesMarkedNotUrgent)
	})

	t.Run("并发纠正不丢失更新", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpsertPatternCount("user-1", domain.PatternTypeSender, "busy.example.com", true)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		patterns, err := s.ListPatterns("user-1")
		require.NoError(t, err)
		for _, p := range patterns {
			if p.PatternValue == "busy.example.com" {
				assert.Equal(t, 50, p.TimesMarkedUrgent)
				return
			}
		}
		t.Fatal("pattern not found")
	})

	t.Run("设置VIP与忽略标记", func(t *testing.T) {
		p, err := s.UpsertPatternCount("user-1", domain.PatternTypeSender, "vip.example.com", true)
		require.NoError(t, err)

		updated, err := s.SetPatternFlags("user-1", p.ID, true, false)
		require.NoError(t, err)
		assert.True(t, updated.IsVIP)
		assert.False(t, updated.IsIgnored)
	})

	t.Run("更新他人模式被拒绝", func(t *testing.T) {
		p, err := s.UpsertPatternCount("user-1", domain.PatternTypeSender, "x.example.com", true)
		require.NoError(t, err)

		_, err = s.SetPatternFlags("user-2", p.ID, true, false)
		assert.ErrorIs(t, err, storage.ErrPatternNotFound)
	})
}

func TestActionRepository(t *testing.T) {
	s := NewStore()

	newAction := func(convID string, expiresAt time.Time) *domain.PendingAction {
		return &domain.PendingAction{
			ID:             "act-" + convID,
			ConversationID: convID,
			UserID:         "user-1",
			Operation:      domain.OperationTrash,
			Candidates:     []domain.CandidateItem{{MessageID: "m1"}},
			State:          domain.ActionStateProposed,
			CreatedAt:      testNow,
			ExpiresAt:      expiresAt,
		}
	}

	t.Run("保存并读取待确认操作", func(t *testing.T) {
		require.NoError(t, s.SavePendingAction(newAction("conv-1", testNow.Add(10*time.Minute))))

		got, err := s.GetPendingAction("conv-1", testNow)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionStateProposed, got.State)
		require.Len(t, got.Candidates, 1)
	})

	t.Run("过期操作读取时被丢弃", func(t *testing.T) {
		require.NoError(t, s.SavePendingAction(newAction("conv-2", testNow.Add(10*time.Minute))))

		// TTL 之后读取
		_, err := s.GetPendingAction("conv-2", testNow.Add(11*time.Minute))
		assert.ErrorIs(t, err, storage.ErrActionNotFound)

		// 再次读取仍然不存在（已被删除）
		_, err = s.GetPendingAction("conv-2", testNow)
		assert.ErrorIs(t, err, storage.ErrActionNotFound)
	})

	t.Run("候选集不随外部修改", func(t *testing.T) {
		require.NoError(t, s.SavePendingAction(newAction("conv-3", testNow.Add(10*time.Minute))))

		got, err := s.GetPendingAction("conv-3", testNow)
		require.NoError(t, err)
		got.Candidates[0].MessageID = "mutated"

		again, err := s.GetPendingAction("conv-3", testNow)
		require.NoError(t, err)
		assert.Equal(t, "m1", again.Candidates[0].MessageID)
	})

	t.Run("更新状态", func(t *testing.T) {
		require.NoError(t, s.UpdatePendingActionState("conv-1", domain.ActionStateConfirmed))

		got, err := s.GetPendingAction("conv-1", testNow)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionStateConfirmed, got.State)
	})

	t.Run("清理过期提案", func(t *testing.T) {
		require.NoError(t, s.SavePendingAction(newAction("conv-4", testNow.Add(1*time.Minute))))
		require.NoError(t, s.SavePendingAction(newAction("conv-5", testNow.Add(20*time.Minute))))

		n, err := s.DeleteExpiredActions(testNow.Add(5 * time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.GetPendingAction("conv-5", testNow.Add(5*time.Minute))
		assert.NoError(t, err)
	})
}
