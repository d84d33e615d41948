package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/storage"
)

var (
	// ErrNoCandidates 条件没有命中任何邮件，不创建提案
	ErrNoCandidates = errors.New("no messages match the criteria")
	// ErrNothingPending 会话当前没有待确认操作（含已过期的情况）
	ErrNothingPending = errors.New("nothing pending for this conversation")
)

// ResponseKind 对用户答复的分类结果。
type ResponseKind string

const (
	ResponseConfirmed ResponseKind = "confirmed" // 确认，已执行
	ResponseCancelled ResponseKind = "cancelled" // 取消，提案作废
	ResponseAmbiguous ResponseKind = "ambiguous" // 无法判断，需要重新询问
)

// RespondResult 一次答复处理的结果。
type RespondResult struct {
	Kind   ResponseKind          `json:"kind"`
	Action *domain.PendingAction `json:"action,omitempty"`
	Report *ExecutionReport      `json:"report,omitempty"` // Kind 为 confirmed 时的执行结果
}

// confirmPhrases / cancelPhrases 固定短语集，全部小写匹配。
var confirmPhrases = []string{
	"yes", "confirm", "proceed", "do it", "go ahead", "ok", "okay",
	"confirm delete", "move to trash", "delete them", "yes please",
}

var cancelPhrases = []string{
	"no", "cancel", "stop", "abort", "never mind", "nevermind", "don't",
}

// ActionService 批量操作的确认工作流状态机。
//
// proposed 是唯一非终态；候选集在提案时刻捕获后不可变，确认时
// 执行的就是当初展示给用户的那一批，绝不重新检索。同一会话的
// 答复串行处理。
type ActionService struct {
	store    storage.ActionRepository
	resolver *ResolverService
	criteria *CriteriaService
	executor *ExecutorService
	ttl      time.Duration
	metrics  *monitoring.Metrics
	log      *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // conversationID -> 答复串行锁
}

// NewActionService 创建确认工作流服务。
func NewActionService(store storage.ActionRepository, criteria *CriteriaService, resolver *ResolverService, executor *ExecutorService, ttl time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *ActionService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ActionService{
		store:    store,
		criteria: criteria,
		resolver: resolver,
		executor: executor,
		ttl:      ttl,
		metrics:  metrics,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Propose 把一条自然语言指令转化为待确认的批量操作提案。
//
// 指令解析失败返回 ErrAmbiguousInstruction；条件无命中返回
// ErrNoCandidates，两种情况都不落任何提案。
func (s *ActionService) Propose(ctx context.Context, userID, conversationID, instruction string, operation domain.ActionOperation, label string) (*domain.PendingAction, error) {
	criteria, err := s.criteria.Extract(ctx, instruction)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candidates, err := s.resolver.Resolve(userID, criteria, now)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	action := &domain.PendingAction{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Operation:      operation,
		Label:          label,
		Candidates:     candidates,
		State:          domain.ActionStateProposed,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.store.SavePendingAction(action); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordProposal(string(operation))
	}
	s.log.Info("bulk action proposed",
		zap.String("conversation_id", conversationID),
		zap.String("operation", string(operation)),
		zap.Int("candidates", len(candidates)),
	)
	return action, nil
}

// Respond 处理用户对待确认操作的答复。
//
// 同一会话的答复严格串行。过期或不存在的提案返回
// ErrNothingPending，调用方按"当前没有待确认操作"提示用户。
// 取消在未达 confirmed+已执行 之前总是生效。
func (s *ActionService) Respond(ctx context.Context, conversationID, utterance string) (*RespondResult, error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	action, err := s.store.GetPendingAction(conversationID, now)
	if err != nil {
		if errors.Is(err, storage.ErrActionNotFound) {
			if s.metrics != nil {
				s.metrics.ExpiredActionsTotal.Inc()
			}
			return nil, ErrNothingPending
		}
		return nil, err
	}
	if action.Terminal() {
		// 终态提案等同于没有提案，残留记录直接清掉
		_ = s.store.DeletePendingAction(conversationID)
		return nil, ErrNothingPending
	}

	switch classifyUtterance(utterance) {
	case ResponseConfirmed:
		if err := s.store.UpdatePendingActionState(conversationID, domain.ActionStateConfirmed); err != nil {
			return nil, err
		}
		// 执行的是提案时刻捕获的候选集
		report := s.executor.Apply(ctx, action.UserID, action.Candidates, action.Operation, action.Label)
		_ = s.store.DeletePendingAction(conversationID)

		action.State = domain.ActionStateConfirmed
		s.log.Info("bulk action confirmed",
			zap.String("conversation_id", conversationID),
			zap.Int("succeeded", len(report.Succeeded)),
			zap.Int("failed", len(report.Failed)),
		)
		return &RespondResult{Kind: ResponseConfirmed, Action: action, Report: &report}, nil

	case ResponseCancelled:
		if err := s.store.UpdatePendingActionState(conversationID, domain.ActionStateCancelled); err != nil {
			return nil, err
		}
		_ = s.store.DeletePendingAction(conversationID)

		action.State = domain.ActionStateCancelled
		s.log.Info("bulk action cancelled", zap.String("conversation_id", conversationID))
		return &RespondResult{Kind: ResponseCancelled, Action: action}, nil

	default:
		// 模糊答复不改变状态，由上层重新询问
		if s.metrics != nil {
			s.metrics.AmbiguousResponses.Inc()
		}
		return &RespondResult{Kind: ResponseAmbiguous, Action: action}, nil
	}
}

// Pending 返回会话当前的待确认操作（过期视同不存在）。
func (s *ActionService) Pending(conversationID string) (*domain.PendingAction, error) {
	action, err := s.store.GetPendingAction(conversationID, time.Now())
	if err != nil {
		if errors.Is(err, storage.ErrActionNotFound) {
			return nil, ErrNothingPending
		}
		return nil, err
	}
	return action, nil
}

// SweepExpired 清理所有已过期提案，返回清理数量。
func (s *ActionService) SweepExpired() (int, error) {
	n, err := s.store.DeleteExpiredActions(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 && s.metrics != nil {
		s.metrics.ExpiredActionsTotal.Add(float64(n))
	}
	return n, nil
}

// conversationLock 取会话级答复锁。
func (s *ActionService) conversationLock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// classifyUtterance 按固定短语集对答复分类，无法判断返回 ambiguous。
func classifyUtterance(utterance string) ResponseKind {
	text := strings.ToLower(strings.TrimSpace(utterance))
	text = strings.Trim(text, ".,!?")
	if text == "" {
		return ResponseAmbiguous
	}

	// 取消优先：同一句里既像确认又像取消时按取消处理
	if matchesPhrase(text, cancelPhrases) {
		return ResponseCancelled
	}
	if matchesPhrase(text, confirmPhrases) {
		return ResponseConfirmed
	}
	return ResponseAmbiguous
}

// matchesPhrase 判断答复是否命中短语集。
// 单词短语按整词匹配（避免 "no" 误命中 "now"），多词短语按子串匹配。
func matchesPhrase(text string, phrases []string) bool {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		words[strings.Trim(w, ".,!?")] = struct{}{}
	}

	for _, p := range phrases {
		if strings.Contains(p, " ") {
			if strings.Contains(text, p) {
				return true
			}
		} else if _, ok := words[p]; ok {
			return true
		}
	}
	return false
}
