package service

import (
	"time"

	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

// ResolverService 把结构化检索条件解析为精确的候选集。
type ResolverService struct {
	store       storage.MessageRepository
	safetyLimit int
	log         *zap.Logger
}

// NewResolverService 创建候选集解析服务。
func NewResolverService(store storage.MessageRepository, safetyLimit int, log *zap.Logger) *ResolverService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResolverService{
		store:       store,
		safetyLimit: safetyLimit,
		log:         log,
	}
}

// Resolve 检索满足条件的候选邮件。
//
// 永远排除已软删除的邮件，按接收时间倒序。条件未限定数量时
// 套用安全上限：即使指令里写了 "all"，用户看到并确认的就是
// 将被操作的全部邮件，上限之外的一封也不会动。
func (s *ResolverService) Resolve(userID string, criteria domain.SearchCriteria, now time.Time) ([]domain.CandidateItem, error) {
	// 显式数量优先于安全上限：用户明确说了 N 就给 N
	limit := s.safetyLimit
	if criteria.Count != nil && *criteria.Count > 0 {
		limit = *criteria.Count
	}

	messages, err := s.store.FindCandidates(userID, criteria, now, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.CandidateItem, 0, len(messages))
	for _, m := range messages {
		candidates = append(candidates, domain.CandidateItem{
			MessageID:  m.ID,
			RemoteID:   m.RemoteID,
			Subject:    m.Subject,
			Sender:     senderDisplay(m),
			Snippet:    m.Snippet,
			ReceivedAt: m.ReceivedAt,
		})
	}

	s.log.Debug("criteria resolved",
		zap.String("user_id", userID),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// senderDisplay 候选列表里展示的发件人：优先显示名。
func senderDisplay(m domain.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.Sender
}
