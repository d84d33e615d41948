package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage/memory"
)

func TestResolverResolve(t *testing.T) {
	now := time.Now()

	seed := func(t *testing.T, store *memory.Store, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			require.NoError(t, store.SaveMessage(&domain.Message{
				ID:         fmt.Sprintf("m%03d", i),
				UserID:     "user-1",
				RemoteID:   fmt.Sprintf("remote-m%03d", i),
				Sender:     "promo@nike.com",
				Subject:    fmt.Sprintf("sale %d", i),
				ReceivedAt: now.Add(-time.Duration(i) * time.Minute),
			}))
		}
	}

	t.Run("未限定数量时套用安全上限", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store, 60)
		svc := NewResolverService(store, 50, nil)

		candidates, err := svc.Resolve("user-1", domain.SearchCriteria{Sender: "nike"}, now)
		require.NoError(t, err)
		assert.Len(t, candidates, 50)
		// 按接收时间倒序，最新的排在最前
		assert.Equal(t, "m000", candidates[0].MessageID)
		assert.Equal(t, "m049", candidates[49].MessageID)
	})

	t.Run("显式数量优先于安全上限", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store, 60)
		svc := NewResolverService(store, 50, nil)

		count := 55
		candidates, err := svc.Resolve("user-1", domain.SearchCriteria{Sender: "nike", Count: &count}, now)
		require.NoError(t, err)
		assert.Len(t, candidates, 55)
	})

	t.Run("显式数量小于命中数时精确截断", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store, 10)
		svc := NewResolverService(store, 50, nil)

		count := 3
		candidates, err := svc.Resolve("user-1", domain.SearchCriteria{Sender: "nike", Count: &count}, now)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		assert.Equal(t, "m000", candidates[0].MessageID)
		assert.Equal(t, "m002", candidates[2].MessageID)
	})

	t.Run("已软删除的邮件不进候选集", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store, 3)
		require.NoError(t, store.SetMessageTrashed("user-1", "m001", now))
		svc := NewResolverService(store, 50, nil)

		candidates, err := svc.Resolve("user-1", domain.SearchCriteria{Sender: "nike"}, now)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
		for _, c := range candidates {
			assert.NotEqual(t, "m001", c.MessageID)
		}
	})

	t.Run("候选项携带展示信息且优先显示名", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.SaveMessage(&domain.Message{
			ID:         "m1",
			UserID:     "user-1",
			RemoteID:   "remote-m1",
			Sender:     "promo@nike.com",
			SenderName: "Nike Store",
			Subject:    "Order shipped",
			Snippet:    "Your order is on the way",
			ReceivedAt: now,
		}))
		svc := NewResolverService(store, 50, nil)

		candidates, err := svc.Resolve("user-1", domain.SearchCriteria{Sender: "nike"}, now)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "remote-m1", candidates[0].RemoteID)
		assert.Equal(t, "Nike Store", candidates[0].Sender)
		assert.Equal(t, "Order shipped", candidates[0].Subject)
		assert.Equal(t, "Your order is on the way", candidates[0].Snippet)
	})
}
