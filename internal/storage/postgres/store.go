package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

// Store 关系型数据库存储实现（PostgreSQL / MySQL）。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Message{},
		&domain.SenderPattern{},
		&domain.PendingAction{},
	)
}

// ========== Message Repository ==========

// SaveMessage 保存邮件信息
func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.Save(message).Error
}

// GetMessage 根据 ID 获取邮件
func (s *Store) GetMessage(userID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.Where("user_id = ? AND id = ?", userID, messageID).First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListRecentMessages 按接收时间倒序返回最近的邮件（不含已软删除）
func (s *Store) ListRecentMessages(userID string, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	q := s.db.Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListUrgentMessages 按接收时间倒序返回紧急邮件（不含已软删除）
func (s *Store) ListUrgentMessages(userID string, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	q := s.db.Where("user_id = ? AND deleted_at IS NULL AND is_urgent = ?", userID, true).
		Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// FindCandidates 按结构化条件检索候选邮件。
// 永远排除已软删除的邮件，按接收时间倒序，最多返回 limit 封。
func (s *Store) FindCandidates(userID string, criteria domain.SearchCriteria, now time.Time, limit int) ([]domain.Message, error) {
	q := s.db.Where("user_id = ? AND deleted_at IS NULL", userID)

	if criteria.Sender != "" {
		needle := "%" + strings.ToLower(criteria.Sender) + "%"
		q = q.Where("LOWER(sender) LIKE ? OR LOWER(sender_name) LIKE ?", needle, needle)
	}
	if criteria.Subject != "" {
		q = q.Where("LOWER(subject) LIKE ?", "%"+strings.ToLower(criteria.Subject)+"%")
	}
	if criteria.Content != "" {
		needle := "%" + strings.ToLower(criteria.Content) + "%"
		q = q.Where("LOWER(body_text) LIKE ? OR LOWER(snippet) LIKE ?", needle, needle)
	}
	if criteria.Unread != nil {
		q = q.Where("is_read = ?", !*criteria.Unread)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch criteria.Window {
	case domain.WindowToday:
		q = q.Where("received_at >= ?", startOfDay)
	case domain.WindowYesterday:
		q = q.Where("received_at >= ? AND received_at < ?", startOfDay.AddDate(0, 0, -1), startOfDay)
	case domain.WindowLastDays:
		q = q.Where("received_at >= ?", now.AddDate(0, 0, -criteria.WindowDays))
	case domain.WindowOlderDays:
		q = q.Where("received_at < ?", now.AddDate(0, 0, -criteria.WindowDays))
	}

	q = q.Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var msgs []domain.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// SetMessageTrashed 软删除一封邮件并附加回收站标签
func (s *Store) SetMessageTrashed(userID, messageID string, at time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var msg domain.Message
		if err := tx.Where("user_id = ? AND id = ?", userID, messageID).First(&msg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storage.ErrMessageNotFound
			}
			return err
		}

		msg.MarkTrashed(at)
		return tx.Save(&msg).Error
	})
}

// SetMessageRestored 从回收站恢复一封邮件并移除回收站标签
func (s *Store) SetMessageRestored(userID, messageID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var msg domain.Message
		if err := tx.Where("user_id = ? AND id = ?", userID, messageID).First(&msg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storage.ErrMessageNotFound
			}
			return err
		}

		msg.MarkRestored()
		// Save 会跳过零值字段，deleted_at 需要显式置空
		if err := tx.Model(&domain.Message{}).
			Where("user_id = ? AND id = ?", userID, messageID).
			Update("deleted_at", nil).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Message{}).
			Where("user_id = ? AND id = ?", userID, messageID).
			Update("labels", msg.Labels).Error
	})
}

// ApplyMessageLabel 为邮件附加标签
func (s *Store) ApplyMessageLabel(userID, messageID, label string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var msg domain.Message
		if err := tx.Where("user_id = ? AND id = ?", userID, messageID).First(&msg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storage.ErrMessageNotFound
			}
			return err
		}

		msg.AddLabel(label)
		return tx.Model(&domain.Message{}).
			Where("user_id = ? AND id = ?", userID, messageID).
			Update("labels", msg.Labels).Error
	})
}

// SaveUrgency 持久化一次紧急度评估的结论
func (s *Store) SaveUrgency(userID, messageID string, score int, reason string, isUrgent bool, at time.Time) error {
	result := s.db.Model(&domain.Message{}).
		Where("user_id = ? AND id = ?", userID, messageID).
		Updates(map[string]interface{}{
			"urgency_score":       score,
			"urgency_reason":      reason,
			"is_urgent":           isUrgent,
			"urgency_analyzed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// CountMessages 统计用户未软删除的邮件数量
func (s *Store) CountMessages(userID string) (int, error) {
	var count int64
	err := s.db.Model(&domain.Message{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Count(&count).Error
	return int(count), err
}

// CountUnread 统计用户未读且未软删除的邮件数量
func (s *Store) CountUnread(userID string) (int, error) {
	var count int64
	err := s.db.Model(&domain.Message{}).
		Where("user_id = ? AND deleted_at IS NULL AND is_read = ?", userID, false).
		Count(&count).Error
	return int(count), err
}

// ========== Pattern Repository ==========

// ListPatterns 返回用户全部发件人模式的快照
func (s *Store) ListPatterns(userID string) ([]domain.SenderPattern, error) {
	var patterns []domain.SenderPattern
	if err := s.db.Where("user_id = ?", userID).Find(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}

// UpsertPatternCount 原子累加纠正计数，记录不存在时先创建。
// 计数列使用 SQL 表达式自增，并发纠正同一键不会丢失更新。
func (s *Store) UpsertPatternCount(userID string, patternType domain.PatternType, patternValue string, urgent bool) (*domain.SenderPattern, error) {
	value := strings.ToLower(patternValue)

	column := "times_marked_urgent"
	if !urgent {
		column = "times_marked_not_urgent"
	}

	var out domain.SenderPattern
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pattern := domain.SenderPattern{
			ID:           uuid.NewString(),
			UserID:       userID,
			PatternType:  patternType,
			PatternValue: value,
		}
		if err := tx.Where(domain.SenderPattern{
			UserID:       userID,
			PatternType:  patternType,
			PatternValue: value,
		}).FirstOrCreate(&pattern).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.SenderPattern{}).
			Where("id = ?", pattern.ID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", pattern.ID).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPatternFlags 更新 VIP / 忽略标记
func (s *Store) SetPatternFlags(userID, patternID string, isVIP, isIgnored bool) (*domain.SenderPattern, error) {
	result := s.db.Model(&domain.SenderPattern{}).
		Where("user_id = ? AND id = ?", userID, patternID).
		Updates(map[string]interface{}{
			"is_vip":     isVIP,
			"is_ignored": isIgnored,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, storage.ErrPatternNotFound
	}

	var out domain.SenderPattern
	if err := s.db.Where("id = ?", patternID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ========== Action Repository ==========

// SavePendingAction 保存一条待确认操作（按会话覆盖）
func (s *Store) SavePendingAction(action *domain.PendingAction) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// 同一会话只保留一条提案
		if err := tx.Where("conversation_id = ?", action.ConversationID).
			Delete(&domain.PendingAction{}).Error; err != nil {
			return err
		}
		return tx.Create(action).Error
	})
}

// GetPendingAction 获取会话的待确认操作。
// 读取时强制检查 TTL：已过期的记录被删除并返回 ErrActionNotFound。
func (s *Store) GetPendingAction(conversationID string, now time.Time) (*domain.PendingAction, error) {
	var action domain.PendingAction
	err := s.db.Where("conversation_id = ?", conversationID).First(&action).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrActionNotFound
		}
		return nil, err
	}

	if action.Expired(now) {
		s.db.Where("conversation_id = ?", conversationID).Delete(&domain.PendingAction{})
		return nil, storage.ErrActionNotFound
	}

	return &action, nil
}

// UpdatePendingActionState 更新待确认操作的状态
func (s *Store) UpdatePendingActionState(conversationID string, state domain.ActionState) error {
	result := s.db.Model(&domain.PendingAction{}).
		Where("conversation_id = ?", conversationID).
		Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrActionNotFound
	}
	return nil
}

// DeletePendingAction 删除会话的待确认操作
func (s *Store) DeletePendingAction(conversationID string) error {
	return s.db.Where("conversation_id = ?", conversationID).
		Delete(&domain.PendingAction{}).Error
}

// DeleteExpiredActions 清理所有已过期提案，返回清理数量
func (s *Store) DeleteExpiredActions(now time.Time) (int, error) {
	result := s.db.Where("expires_at <= ?", now).Delete(&domain.PendingAction{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 数据库健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
