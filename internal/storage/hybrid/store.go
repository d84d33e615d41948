package hybrid

import (
	"time"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
	"inboxpilot/backend/internal/storage/redis"
)

// Store 混合存储实现：邮件与模式走底层数据库，
// 待确认操作改走 Redis（利用键过期实现硬 TTL）。
type Store struct {
	storage.Store // 底层数据库存储

	actions *redis.ActionStore
	client  *redis.Client
}

// NewStore 创建混合存储实例
func NewStore(db storage.Store, client *redis.Client) *Store {
	return &Store{
		Store:   db,
		actions: redis.NewActionStore(client),
		client:  client,
	}
}

// SavePendingAction 保存一条待确认操作
func (s *Store) SavePendingAction(action *domain.PendingAction) error {
	return s.actions.SavePendingAction(action)
}

// GetPendingAction 获取会话的待确认操作
func (s *Store) GetPendingAction(conversationID string, now time.Time) (*domain.PendingAction, error) {
	return s.actions.GetPendingAction(conversationID, now)
}

// UpdatePendingActionState 更新待确认操作的状态
func (s *Store) UpdatePendingActionState(conversationID string, state domain.ActionState) error {
	return s.actions.UpdatePendingActionState(conversationID, state)
}

// DeletePendingAction 删除会话的待确认操作
func (s *Store) DeletePendingAction(conversationID string) error {
	return s.actions.DeletePendingAction(conversationID)
}

// DeleteExpiredActions 清理过期提案（Redis 键自动过期）
func (s *Store) DeleteExpiredActions(now time.Time) (int, error) {
	return s.actions.DeleteExpiredActions(now)
}

// Close 依次关闭 Redis 与底层数据库连接
func (s *Store) Close() error {
	redisErr := s.client.Close()
	dbErr := s.Store.Close()
	if dbErr != nil {
		return dbErr
	}
	return redisErr
}
