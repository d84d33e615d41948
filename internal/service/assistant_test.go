package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage/memory"
)

func newAssistantHarness(store *memory.Store) *AssistantService {
	return NewAssistantService(newActionHarness(store, 10*time.Minute), store, nil)
}

func TestAssistantHandleMessage(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	t.Run("完整的提案确认流程", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)
		seedNikeMessage(t, store, "m2", base.Add(time.Minute))

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "move all emails from nike to trash")
		require.NoError(t, err)
		assert.Equal(t, ReplyProposal, reply.Kind)
		require.NotNil(t, reply.Action)
		assert.Len(t, reply.Action.Candidates, 2)

		reply, err = svc.HandleMessage(ctx, "user-1", "conv-1", "yes")
		require.NoError(t, err)
		assert.Equal(t, ReplyExecuted, reply.Kind)
		require.NotNil(t, reply.Report)
		assert.Len(t, reply.Report.Succeeded, 2)

		m1, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.True(t, m1.IsTrashed())
	})

	t.Run("取消流程", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)

		_, err := svc.HandleMessage(ctx, "user-1", "conv-1", "delete all emails from nike")
		require.NoError(t, err)

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "no")
		require.NoError(t, err)
		assert.Equal(t, ReplyCancelled, reply.Kind)

		m1, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.False(t, m1.IsTrashed())
	})

	t.Run("模糊答复要求澄清后仍可确认", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)

		_, err := svc.HandleMessage(ctx, "user-1", "conv-1", "delete all emails from nike")
		require.NoError(t, err)

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "what do you mean")
		require.NoError(t, err)
		assert.Equal(t, ReplyClarify, reply.Kind)

		reply, err = svc.HandleMessage(ctx, "user-1", "conv-1", "confirm")
		require.NoError(t, err)
		assert.Equal(t, ReplyExecuted, reply.Kind)
	})

	t.Run("非指令消息返回错误", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)

		_, err := svc.HandleMessage(ctx, "user-1", "conv-1", "how is the weather")
		assert.ErrorIs(t, err, ErrNotAnInstruction)
	})

	t.Run("条件无命中时提示无结果", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "delete all emails from adidas")
		require.NoError(t, err)
		assert.Equal(t, ReplyEmpty, reply.Kind)
	})

	t.Run("解析不出条件时要求补充", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "delete stuff")
		require.NoError(t, err)
		assert.Equal(t, ReplyClarify, reply.Kind)
	})

	t.Run("概况提问返回邮件统计", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)
		seedNikeMessage(t, store, "m2", base.Add(time.Minute))

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "how many unread emails do I have")
		require.NoError(t, err)
		assert.Equal(t, ReplyStatus, reply.Kind)
		assert.Contains(t, reply.Message, "2 封邮件")
	})

	t.Run("打标签流程", func(t *testing.T) {
		store := memory.NewStore()
		svc := newAssistantHarness(store)
		seedNikeMessage(t, store, "m1", base)

		reply, err := svc.HandleMessage(ctx, "user-1", "conv-1", "mark all emails from nike as receipts")
		require.NoError(t, err)
		assert.Equal(t, ReplyProposal, reply.Kind)
		assert.Equal(t, domain.OperationLabel, reply.Action.Operation)
		assert.Equal(t, "receipts", reply.Action.Label)

		_, err = svc.HandleMessage(ctx, "user-1", "conv-1", "yes")
		require.NoError(t, err)

		m1, err := store.GetMessage("user-1", "m1")
		require.NoError(t, err)
		assert.True(t, m1.Labels.Contains("receipts"))
	})
}

func TestDetectOperation(t *testing.T) {
	cases := []struct {
		text      string
		operation domain.ActionOperation
		label     string
		ok        bool
	}{
		{"delete all emails from nike", domain.OperationTrash, "", true},
		{"move these to trash", domain.OperationTrash, "", true},
		{"remove old newsletters", domain.OperationTrash, "", true},
		{"restore the emails from nike", domain.OperationRestore, "", true},
		{"untrash everything from yesterday", domain.OperationRestore, "", true},
		{"mark emails from nike as receipts", domain.OperationLabel, "receipts", true},
		{"label these as follow-up", domain.OperationLabel, "follow-up", true},
		{"how is the weather", "", "", false},
		// 缺少目标标签的标记指令无法构成操作
		{"mark these emails", "", "", false},
	}

	for _, c := range cases {
		op, label, ok := detectOperation(c.text)
		assert.Equal(t, c.ok, ok, "text: %q", c.text)
		assert.Equal(t, c.operation, op, "text: %q", c.text)
		assert.Equal(t, c.label, label, "text: %q", c.text)
	}
}
