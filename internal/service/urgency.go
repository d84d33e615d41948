package service

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/queue"
	"inboxpilot/backend/internal/storage"
	"inboxpilot/backend/internal/triage"
)

// UrgencyService 封装紧急度评估与纠正学习的业务操作。
type UrgencyService struct {
	store   storage.Store
	scorer  *triage.Scorer
	pool    *queue.WorkerPool
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewUrgencyService 创建紧急度业务服务。
func NewUrgencyService(store storage.Store, scorer *triage.Scorer, pool *queue.WorkerPool, metrics *monitoring.Metrics, log *zap.Logger) *UrgencyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UrgencyService{
		store:   store,
		scorer:  scorer,
		pool:    pool,
		metrics: metrics,
		log:     log,
	}
}

// Classify 对一封邮件做同步紧急度评估并落库。
//
// 模式快照在评估开始时读取一次，评估期间视为不可变；
// 相同输入与评估时间必然得到相同结果。
func (s *UrgencyService) Classify(userID, messageID string) (*domain.UrgencySignal, error) {
	msg, err := s.store.GetMessage(userID, messageID)
	if err != nil {
		return nil, err
	}

	patterns, err := s.store.ListPatterns(userID)
	if err != nil {
		// 模式读取失败时按无模式评估，宁可少一个信号也不中断
		s.log.Warn("pattern snapshot unavailable, scoring without patterns",
			zap.String("user_id", userID), zap.Error(err))
		patterns = nil
	}

	now := time.Now()
	signal := s.scorer.Score(msg, patterns, now)

	if err := s.store.SaveUrgency(userID, messageID, signal.Score, signal.Summary(), signal.IsUrgent, now); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordClassification(signal.IsUrgent, time.Since(now))
	}
	s.log.Debug("message classified",
		zap.String("message_id", messageID),
		zap.Int("score", signal.Score),
		zap.Bool("is_urgent", signal.IsUrgent),
	)

	return &signal, nil
}

// ClassifyAsync 将评估任务提交到后台队列，队列满时降级为同步执行。
func (s *UrgencyService) ClassifyAsync(userID, messageID string) {
	if s.pool == nil {
		_, _ = s.Classify(userID, messageID)
		return
	}

	ok := s.pool.TrySubmit(func() {
		if _, err := s.Classify(userID, messageID); err != nil {
			s.log.Warn("async classification failed",
				zap.String("message_id", messageID), zap.Error(err))
		}
	})
	if !ok {
		s.log.Warn("classification queue full, falling back to sync",
			zap.String("message_id", messageID))
		_, _ = s.Classify(userID, messageID)
	}
	if s.metrics != nil {
		s.metrics.ClassifyBacklog.Set(float64(s.pool.Backlog()))
	}
}

// RecordCorrection 记录用户对紧急判定的纠正并更新发件人模式。
//
// 模式键取发件人域名（@ 之后的部分）做聚合；计数原子累加，
// 并发纠正同一域名不丢失更新。纠正后的判定立即回写到邮件上。
func (s *UrgencyService) RecordCorrection(userID, messageID string, correctedToUrgent bool) (*domain.SenderPattern, error) {
	msg, err := s.store.GetMessage(userID, messageID)
	if err != nil {
		return nil, err
	}

	pattern, err := s.store.UpsertPatternCount(userID, domain.PatternTypeSender, senderDomain(msg.Sender), correctedToUrgent)
	if err != nil {
		return nil, err
	}

	// 纠正后的判定写回邮件，分数与原因保留原值
	if err := s.store.SaveUrgency(userID, messageID, msg.UrgencyScore, msg.UrgencyReason, correctedToUrgent, time.Now()); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCorrection(correctedToUrgent)
	}
	s.log.Info("learned from correction",
		zap.String("pattern_value", pattern.PatternValue),
		zap.Bool("corrected_to_urgent", correctedToUrgent),
	)

	return pattern, nil
}

// ListUrgent 返回用户当前的紧急邮件。
func (s *UrgencyService) ListUrgent(userID string, limit int) ([]domain.Message, error) {
	return s.store.ListUrgentMessages(userID, limit)
}

// ListPatterns 返回用户的发件人模式。
func (s *UrgencyService) ListPatterns(userID string) ([]domain.SenderPattern, error) {
	return s.store.ListPatterns(userID)
}

// SetPatternFlags 更新模式的 VIP / 忽略标记。
func (s *UrgencyService) SetPatternFlags(userID, patternID string, isVIP, isIgnored bool) (*domain.SenderPattern, error) {
	return s.store.SetPatternFlags(userID, patternID, isVIP, isIgnored)
}

// senderDomain 取发件人地址的域名部分，无 @ 时退回完整地址。
func senderDomain(sender string) string {
	if i := strings.LastIndex(sender, "@"); i >= 0 && i+1 < len(sender) {
		return strings.ToLower(sender[i+1:])
	}
	return strings.ToLower(sender)
}
