package storage

import (
	"errors"
	"time"

	"inboxpilot/backend/internal/domain"
)

var (
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrPatternNotFound 发件人模式未找到错误
	ErrPatternNotFound = errors.New("sender pattern not found")
	// ErrActionNotFound 待确认操作未找到（或已过期被丢弃）错误
	ErrActionNotFound = errors.New("pending action not found")
)

// MessageRepository 定义邮件镜像数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	GetMessage(userID, messageID string) (*domain.Message, error)
	ListRecentMessages(userID string, limit int) ([]domain.Message, error)
	ListUrgentMessages(userID string, limit int) ([]domain.Message, error)

	// FindCandidates 按结构化条件检索候选邮件：
	// 永远排除已软删除的邮件，按接收时间倒序，最多返回 limit 封。
	FindCandidates(userID string, criteria domain.SearchCriteria, now time.Time, limit int) ([]domain.Message, error)

	// SetMessageTrashed / SetMessageRestored 维护软删除时间戳与回收站标签的同步。
	SetMessageTrashed(userID, messageID string, at time.Time) error
	SetMessageRestored(userID, messageID string) error
	ApplyMessageLabel(userID, messageID, label string) error

	// SaveUrgency 持久化一次紧急度评估的结论。
	SaveUrgency(userID, messageID string, score int, reason string, isUrgent bool, at time.Time) error

	CountMessages(userID string) (int, error)
	CountUnread(userID string) (int, error)
}

// PatternRepository 定义发件人模式数据存取操作。
type PatternRepository interface {
	// ListPatterns 返回用户全部模式的快照，评分期间视为不可变。
	ListPatterns(userID string) ([]domain.SenderPattern, error)

	// UpsertPatternCount 按 (userID, patternType, patternValue) 原子累加纠正计数，
	// 记录不存在时先创建。并发纠正同一键不允许丢失更新。
	UpsertPatternCount(userID string, patternType domain.PatternType, patternValue string, urgent bool) (*domain.SenderPattern, error)

	// SetPatternFlags 更新 VIP / 忽略标记。
	SetPatternFlags(userID, patternID string, isVIP, isIgnored bool) (*domain.SenderPattern, error)
}

// ActionRepository 定义待确认操作数据存取操作。
//
// GetPendingAction 必须在读取时强制检查 TTL：已过期的记录被丢弃并
// 返回 ErrActionNotFound，调用方视同"当前没有待确认操作"。
type ActionRepository interface {
	SavePendingAction(action *domain.PendingAction) error
	GetPendingAction(conversationID string, now time.Time) (*domain.PendingAction, error)
	UpdatePendingActionState(conversationID string, state domain.ActionState) error
	DeletePendingAction(conversationID string) error
	// DeleteExpiredActions 清理所有已过期提案，返回清理数量。
	DeleteExpiredActions(now time.Time) (int, error)
}

// Store 定义完整的存储接口。
type Store interface {
	MessageRepository
	PatternRepository
	ActionRepository

	// 工具方法
	Close() error
	Health() error
}
