package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/mailstore"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/storage"
)

// ErrUnknownOperation 不支持的批量操作类型
var ErrUnknownOperation = errors.New("unknown action operation")

// ExecutionReport 一次批量操作的精确执行结果。
//
// 部分失败必须如实上报：既不把部分成功说成全部失败，
// 也不反过来。
type ExecutionReport struct {
	Succeeded []string `json:"succeeded"` // 成功的邮件 ID
	Failed    []string `json:"failed"`    // 本地镜像更新失败的邮件 ID
}

// ExecutorService 对候选集逐封执行变更操作。
//
// 每封邮件先尽力调用上游服务商，随后无论上游成败都把本地镜像
// 推进到目标状态——本地镜像是用户可见结果的权威来源，上游失败
// 只记录对账信号。单封失败不中断后续处理。
type ExecutorService struct {
	store   storage.MessageRepository
	mail    mailstore.Client
	timeout time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewExecutorService 创建批量操作执行服务。
func NewExecutorService(store storage.MessageRepository, mail mailstore.Client, timeout time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *ExecutorService {
	if mail == nil {
		mail = mailstore.Noop{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecutorService{
		store:   store,
		mail:    mail,
		timeout: timeout,
		metrics: metrics,
		log:     log,
	}
}

// Apply 对候选集执行指定操作，返回成功与失败的精确清单。
func (s *ExecutorService) Apply(ctx context.Context, userID string, candidates []domain.CandidateItem, operation domain.ActionOperation, label string) ExecutionReport {
	report := ExecutionReport{
		Succeeded: make([]string, 0, len(candidates)),
		Failed:    make([]string, 0),
	}
	now := time.Now()

	for _, c := range candidates {
		s.mirrorProvider(ctx, c, operation, label)

		if err := s.applyLocal(userID, c.MessageID, operation, label, now); err != nil {
			s.log.Error("local mutation failed",
				zap.String("message_id", c.MessageID),
				zap.String("operation", string(operation)),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, c.MessageID)
			continue
		}
		report.Succeeded = append(report.Succeeded, c.MessageID)
	}

	if s.metrics != nil {
		s.metrics.RecordMutationResult(len(report.Succeeded), len(report.Failed))
	}
	return report
}

// mirrorProvider 尽力把变更同步到上游服务商，带单次调用超时。
// 失败不影响本地镜像，但必须留下对账信号。
func (s *ExecutorService) mirrorProvider(ctx context.Context, c domain.CandidateItem, operation domain.ActionOperation, label string) {
	if c.RemoteID == "" {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var err error
	switch operation {
	case domain.OperationTrash:
		err = s.mail.Trash(callCtx, c.RemoteID)
	case domain.OperationRestore:
		err = s.mail.Restore(callCtx, c.RemoteID)
	case domain.OperationLabel:
		err = s.mail.ApplyLabel(callCtx, c.RemoteID, label)
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.ProviderDivergence.Inc()
		}
		s.log.Warn("provider mutation failed, local mirror stays authoritative",
			zap.String("remote_id", c.RemoteID),
			zap.String("operation", string(operation)),
			zap.Error(err),
		)
	}
}

// applyLocal 把本地镜像推进到目标状态。
func (s *ExecutorService) applyLocal(userID, messageID string, operation domain.ActionOperation, label string, now time.Time) error {
	switch operation {
	case domain.OperationTrash:
		return s.store.SetMessageTrashed(userID, messageID, now)
	case domain.OperationRestore:
		return s.store.SetMessageRestored(userID, messageID)
	case domain.OperationLabel:
		return s.store.ApplyMessageLabel(userID, messageID, label)
	default:
		return ErrUnknownOperation
	}
}
