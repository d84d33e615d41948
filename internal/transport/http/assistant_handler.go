package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"inboxpilot/backend/internal/service"
)

type assistantMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Text           string `json:"text" binding:"required"`
}

// assistantMessage 处理一条助手对话消息。
//
// 会话有待确认提案时，消息被当作答复；否则按新的批量操作指令解析。
func (h *Handler) assistantMessage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req assistantMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	reply, err := h.assistant.HandleMessage(c.Request.Context(), userID, req.ConversationID, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrNotAnInstruction) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgAssistantFailed)
		return
	}

	Success(c, reply)
}

// getPendingAction 查看会话当前的待确认操作。
func (h *Handler) getPendingAction(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	action, err := h.actions.Pending(c.Param("conversationId"))
	if err != nil {
		if errors.Is(err, service.ErrNothingPending) {
			NotFound(c, MsgNothingPending)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, action)
}

type respondRequest struct {
	Utterance string `json:"utterance" binding:"required"`
}

// respondToAction 处理用户对待确认操作的答复。
func (h *Handler) respondToAction(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.actions.Respond(c.Request.Context(), c.Param("conversationId"), req.Utterance)
	if err != nil {
		if errors.Is(err, service.ErrNothingPending) {
			NotFound(c, MsgNothingPending)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, result)
}
