package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

const actionKeyPrefix = "pending_action:"

// ActionStore 基于 Redis 的待确认操作存储。
//
// 写入时把键的过期时间设置为提案剩余有效期，Redis 负责硬过期；
// 读取时仍做一次 TTL 校验，防止时钟漂移导致的边界泄漏。
type ActionStore struct {
	client *Client
	ctx    context.Context
}

// NewActionStore 创建待确认操作存储
func NewActionStore(client *Client) *ActionStore {
	return &ActionStore{
		client: client,
		ctx:    context.Background(),
	}
}

func actionKey(conversationID string) string {
	return actionKeyPrefix + conversationID
}

// SavePendingAction 保存一条待确认操作（按会话覆盖）
func (s *ActionStore) SavePendingAction(action *domain.PendingAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return err
	}

	ttl := time.Until(action.ExpiresAt)
	if ttl <= 0 {
		// 已过期的提案不落库
		return nil
	}
	return s.client.rdb.Set(s.ctx, actionKey(action.ConversationID), data, ttl).Err()
}

// GetPendingAction 获取会话的待确认操作。
// 键不存在或提案已过期均返回 ErrActionNotFound。
func (s *ActionStore) GetPendingAction(conversationID string, now time.Time) (*domain.PendingAction, error) {
	data, err := s.client.rdb.Get(s.ctx, actionKey(conversationID)).Bytes()
	if err == goredis.Nil {
		return nil, storage.ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}

	var action domain.PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, err
	}

	if action.Expired(now) {
		s.client.rdb.Del(s.ctx, actionKey(conversationID))
		return nil, storage.ErrActionNotFound
	}
	return &action, nil
}

// UpdatePendingActionState 更新待确认操作的状态，保留剩余 TTL。
func (s *ActionStore) UpdatePendingActionState(conversationID string, state domain.ActionState) error {
	action, err := s.GetPendingAction(conversationID, time.Now())
	if err != nil {
		return err
	}

	action.State = state
	data, err := json.Marshal(action)
	if err != nil {
		return err
	}
	return s.client.rdb.Set(s.ctx, actionKey(conversationID), data, goredis.KeepTTL).Err()
}

// DeletePendingAction 删除会话的待确认操作
func (s *ActionStore) DeletePendingAction(conversationID string) error {
	return s.client.rdb.Del(s.ctx, actionKey(conversationID)).Err()
}

// DeleteExpiredActions 清理过期提案。
// Redis 键自带过期时间，由服务端自动回收，这里恒返回 0。
func (s *ActionStore) DeleteExpiredActions(now time.Time) (int, error) {
	return 0, nil
}
