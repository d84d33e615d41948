package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

// Store 使用内存保存邮件镜像与模式数据，主要用于开发验证和测试。
type Store struct {
	mu       sync.RWMutex
	messages map[string]map[string]*domain.Message       // userID -> messageID -> message
	patterns map[string]map[string]*domain.SenderPattern // userID -> "type:value" -> pattern
	byID     map[string]*domain.SenderPattern            // patternID -> pattern
	actions  map[string]*domain.PendingAction            // conversationID -> action
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		messages: make(map[string]map[string]*domain.Message),
		patterns: make(map[string]map[string]*domain.SenderPattern),
		byID:     make(map[string]*domain.SenderPattern),
		actions:  make(map[string]*domain.PendingAction),
	}
}

func patternKey(t domain.PatternType, value string) string {
	return string(t) + ":" + strings.ToLower(value)
}

// SaveMessage 保存（或覆盖）一封邮件。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.messages[message.UserID]
	if !ok {
		bucket = make(map[string]*domain.Message)
		s.messages[message.UserID] = bucket
	}

	cp := *message
	bucket[message.ID] = &cp
	return nil
}

// GetMessage 根据 ID 获取邮件。
func (s *Store) GetMessage(userID, messageID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[userID][messageID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}

	cp := *msg
	return &cp, nil
}

// ListRecentMessages 按接收时间倒序返回最近的邮件（不含已软删除）。
func (s *Store) ListRecentMessages(userID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, msg := range s.messages[userID] {
		if msg.DeletedAt != nil {
			continue
		}
		out = append(out, *msg)
	}

	sortByReceivedDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListUrgentMessages 按接收时间倒序返回被判定为紧急的邮件（不含已软删除）。
func (s *Store) ListUrgentMessages(userID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, msg := range s.messages[userID] {
		if msg.DeletedAt != nil || !msg.IsUrgent {
			continue
		}
		out = append(out, *msg)
	}

	sortByReceivedDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindCandidates 按结构化条件检索候选邮件。
// 永远排除已软删除的邮件，按接收时间倒序，最多返回 limit 封。
func (s *Store) FindCandidates(userID string, criteria domain.SearchCriteria, now time.Time, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, msg := range s.messages[userID] {
		if msg.DeletedAt != nil {
			continue
		}
		if !matches(msg, criteria, now) {
			continue
		}
		out = append(out, *msg)
	}

	sortByReceivedDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// matches 判断一封邮件是否满足检索条件（软删除已在外层排除）。
func matches(msg *domain.Message, c domain.SearchCriteria, now time.Time) bool {
	if c.Sender != "" {
		needle := strings.ToLower(c.Sender)
		if !strings.Contains(strings.ToLower(msg.Sender), needle) &&
			!strings.Contains(strings.ToLower(msg.SenderName), needle) {
			return false
		}
	}
	if c.Subject != "" && !strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(c.Subject)) {
		return false
	}
	if c.Content != "" {
		needle := strings.ToLower(c.Content)
		if !strings.Contains(strings.ToLower(msg.BodyText), needle) &&
			!strings.Contains(strings.ToLower(msg.Snippet), needle) {
			return false
		}
	}
	if c.Unread != nil && msg.IsRead == *c.Unread {
		return false
	}
	return inWindow(msg.ReceivedAt, c, now)
}

// inWindow 判断接收时间是否落在条件的时间范围内。
func inWindow(receivedAt time.Time, c domain.SearchCriteria, now time.Time) bool {
	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	switch c.Window {
	case domain.WindowToday:
		return !receivedAt.Before(startOfDay(now))
	case domain.WindowYesterday:
		y := startOfDay(now.AddDate(0, 0, -1))
		return !receivedAt.Before(y) && receivedAt.Before(startOfDay(now))
	case domain.WindowLastDays:
		return !receivedAt.Before(now.AddDate(0, 0, -c.WindowDays))
	case domain.WindowOlderDays:
		return receivedAt.Before(now.AddDate(0, 0, -c.WindowDays))
	default:
		return true
	}
}

func sortByReceivedDesc(msgs []domain.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
	})
}

// SetMessageTrashed 软删除一封邮件并附加回收站标签。
func (s *Store) SetMessageTrashed(userID, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[userID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}

	msg.MarkTrashed(at)
	msg.UpdatedAt = at
	return nil
}

// SetMessageRestored 从回收站恢复一封邮件并移除回收站标签。
func (s *Store) SetMessageRestored(userID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[userID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}

	msg.MarkRestored()
	msg.UpdatedAt = time.Now()
	return nil
}

// ApplyMessageLabel 为邮件附加标签。
func (s *Store) ApplyMessageLabel(userID, messageID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[userID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}

	msg.AddLabel(label)
	msg.UpdatedAt = time.Now()
	return nil
}

// SaveUrgency 持久化一次紧急度评估的结论。
func (s *Store) SaveUrgency(userID, messageID string, score int, reason string, isUrgent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[userID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}

	msg.UrgencyScore = score
	msg.UrgencyReason = reason
	msg.IsUrgent = isUrgent
	analyzedAt := at
	msg.UrgencyAnalyzedAt = &analyzedAt
	msg.UpdatedAt = at
	return nil
}

// CountMessages 统计用户未软删除的邮件数量。
func (s *Store) CountMessages(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages[userID] {
		if msg.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

// CountUnread 统计用户未读且未软删除的邮件数量。
func (s *Store) CountUnread(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages[userID] {
		if msg.DeletedAt == nil && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

// ListPatterns 返回用户全部发件人模式的快照。
func (s *Store) ListPatterns(userID string) ([]domain.SenderPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SenderPattern, 0, len(s.patterns[userID]))
	for _, p := range s.patterns[userID] {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PatternValue < out[j].PatternValue })
	return out, nil
}

// UpsertPatternCount 原子累加纠正计数，记录不存在时先创建。
func (s *Store) UpsertPatternCount(userID string, patternType domain.PatternType, patternValue string, urgent bool) (*domain.SenderPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.patterns[userID]
	if !ok {
		bucket = make(map[string]*domain.SenderPattern)
		s.patterns[userID] = bucket
	}

	key := patternKey(patternType, patternValue)
	p, ok := bucket[key]
	if !ok {
		now := time.Now()
		p = &domain.SenderPattern{
			ID:           uuid.NewString(),
			UserID:       userID,
			PatternType:  patternType,
			PatternValue: strings.ToLower(patternValue),
			CreatedAt:    now,
		}
		bucket[key] = p
		s.byID[p.ID] = p
	}

	if urgent {
		p.TimesMarkedUrgent++
	} else {
		p.TimesMarkedNotUrgent++
	}
	p.UpdatedAt = time.Now()

	cp := *p
	return &cp, nil
}

// SetPatternFlags 更新 VIP / 忽略标记。
func (s *Store) SetPatternFlags(userID, patternID string, isVIP, isIgnored bool) (*domain.SenderPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[patternID]
	if !ok || p.UserID != userID {
		return nil, storage.ErrPatternNotFound
	}

	p.IsVIP = isVIP
	p.IsIgnored = isIgnored
	p.UpdatedAt = time.Now()

	cp := *p
	return &cp, nil
}

// SavePendingAction 保存一条待确认操作（按会话覆盖）。
func (s *Store) SavePendingAction(action *domain.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *action
	cp.Candidates = append([]domain.CandidateItem(nil), action.Candidates...)
	s.actions[action.ConversationID] = &cp
	return nil
}

// GetPendingAction 获取会话的待确认操作。
// 读取时强制检查 TTL：已过期的记录被丢弃并返回 ErrActionNotFound。
func (s *Store) GetPendingAction(conversationID string, now time.Time) (*domain.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[conversationID]
	if !ok {
		return nil, storage.ErrActionNotFound
	}
	if a.Expired(now) {
		delete(s.actions, conversationID)
		return nil, storage.ErrActionNotFound
	}

	cp := *a
	cp.Candidates = append([]domain.CandidateItem(nil), a.Candidates...)
	return &cp, nil
}

// UpdatePendingActionState 更新待确认操作的状态。
func (s *Store) UpdatePendingActionState(conversationID string, state domain.ActionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[conversationID]
	if !ok {
		return storage.ErrActionNotFound
	}
	a.State = state
	return nil
}

// DeletePendingAction 删除会话的待确认操作。
func (s *Store) DeletePendingAction(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.actions, conversationID)
	return nil
}

// DeleteExpiredActions 清理所有已过期提案，返回清理数量。
func (s *Store) DeleteExpiredActions(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, a := range s.actions {
		if a.Expired(now) {
			delete(s.actions, id)
			count++
		}
	}
	return count, nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}
