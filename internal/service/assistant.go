package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

// ErrNotAnInstruction 消息里没有可识别的批量操作意图
var ErrNotAnInstruction = errors.New("message is not a bulk action instruction")

// ReplyKind 助手回复的类型。
type ReplyKind string

const (
	ReplyProposal  ReplyKind = "proposal"  // 新提案，等待确认
	ReplyExecuted  ReplyKind = "executed"  // 已确认并执行
	ReplyCancelled ReplyKind = "cancelled" // 已取消
	ReplyClarify   ReplyKind = "clarify"   // 需要用户澄清
	ReplyEmpty     ReplyKind = "empty"     // 条件无命中
	ReplyStatus    ReplyKind = "status"    // 邮箱概况答复
)

// AssistantReply 助手对一条消息的处理结果。
type AssistantReply struct {
	Kind    ReplyKind             `json:"kind"`
	Message string                `json:"message"`
	Action  *domain.PendingAction `json:"action,omitempty"`
	Report  *ExecutionReport      `json:"report,omitempty"`
}

// AssistantService 批量操作助手的对话入口。
//
// 会话里有待确认提案时，消息被当作对提案的答复；
// 否则按新指令解析并发起提案。
type AssistantService struct {
	actions *ActionService
	store   storage.MessageRepository
	log     *zap.Logger
}

// NewAssistantService 创建助手服务。
func NewAssistantService(actions *ActionService, store storage.MessageRepository, log *zap.Logger) *AssistantService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssistantService{actions: actions, store: store, log: log}
}

var labelPattern = regexp.MustCompile(`(?:label|mark)\b.*\bas ([\w-]+)`)

// HandleMessage 处理一条用户消息。
func (s *AssistantService) HandleMessage(ctx context.Context, userID, conversationID, text string) (*AssistantReply, error) {
	// 有待确认提案时，消息是对提案的答复
	if _, err := s.actions.Pending(conversationID); err == nil {
		return s.handleResponse(ctx, conversationID, text)
	}

	if isStatusQuery(text) {
		return s.handleStatus(userID)
	}

	operation, label, ok := detectOperation(text)
	if !ok {
		return nil, ErrNotAnInstruction
	}

	action, err := s.actions.Propose(ctx, userID, conversationID, text, operation, label)
	if err != nil {
		switch {
		case errors.Is(err, ErrAmbiguousInstruction):
			return &AssistantReply{
				Kind:    ReplyClarify,
				Message: "没有解析出可用的筛选条件，请补充发件人、时间范围或数量",
			}, nil
		case errors.Is(err, ErrNoCandidates):
			return &AssistantReply{
				Kind:    ReplyEmpty,
				Message: "没有找到符合条件的邮件",
			}, nil
		default:
			return nil, err
		}
	}

	return &AssistantReply{
		Kind:    ReplyProposal,
		Message: fmt.Sprintf("找到 %d 封邮件，确认执行吗？", len(action.Candidates)),
		Action:  action,
	}, nil
}

// handleResponse 把消息当作对现有提案的答复处理。
func (s *AssistantService) handleResponse(ctx context.Context, conversationID, text string) (*AssistantReply, error) {
	result, err := s.actions.Respond(ctx, conversationID, text)
	if err != nil {
		if errors.Is(err, ErrNothingPending) {
			// 答复与读取之间提案过期了，按无提案提示
			return &AssistantReply{
				Kind:    ReplyClarify,
				Message: "当前没有待确认的操作，提案可能已过期，请重新发起",
			}, nil
		}
		return nil, err
	}

	switch result.Kind {
	case ResponseConfirmed:
		return &AssistantReply{
			Kind: ReplyExecuted,
			Message: fmt.Sprintf("已执行：成功 %d 封，失败 %d 封",
				len(result.Report.Succeeded), len(result.Report.Failed)),
			Action: result.Action,
			Report: result.Report,
		}, nil
	case ResponseCancelled:
		return &AssistantReply{
			Kind:    ReplyCancelled,
			Message: "操作已取消，没有邮件被改动",
			Action:  result.Action,
		}, nil
	default:
		return &AssistantReply{
			Kind:    ReplyClarify,
			Message: "请回复确认或取消",
			Action:  result.Action,
		}, nil
	}
}

// handleStatus 回答邮箱概况类的提问。
func (s *AssistantService) handleStatus(userID string) (*AssistantReply, error) {
	total, err := s.store.CountMessages(userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(userID)
	if err != nil {
		return nil, err
	}

	return &AssistantReply{
		Kind:    ReplyStatus,
		Message: fmt.Sprintf("共 %d 封邮件，其中 %d 封未读", total, unread),
	}, nil
}

// isStatusQuery 识别邮箱概况类提问。
func isStatusQuery(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "how many") || strings.Contains(lower, "inbox status")
}

// detectOperation 从消息里识别批量操作意图。
func detectOperation(text string) (domain.ActionOperation, string, bool) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "restore") || strings.Contains(lower, "untrash") ||
		strings.Contains(lower, "recover"):
		return domain.OperationRestore, "", true
	case strings.Contains(lower, "label") || strings.Contains(lower, "mark"):
		if m := labelPattern.FindStringSubmatch(lower); m != nil {
			return domain.OperationLabel, m[1], true
		}
		return "", "", false
	case strings.Contains(lower, "delete") || strings.Contains(lower, "trash") ||
		strings.Contains(lower, "remove"):
		return domain.OperationTrash, "", true
	}
	return "", "", false
}
