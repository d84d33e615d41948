package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/storage"
)

type patternListResponse struct {
	Items []domain.SenderPattern `json:"items"`
	Count int                    `json:"count"`
}

// listPatterns 返回用户的全部发件人模式。
func (h *Handler) listPatterns(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	patterns, err := h.urgency.ListPatterns(userID)
	if err != nil {
		InternalError(c, MsgPatternListFailed)
		return
	}

	Success(c, patternListResponse{Items: patterns, Count: len(patterns)})
}

type updatePatternRequest struct {
	IsVIP     *bool `json:"isVip" binding:"required"`
	IsIgnored *bool `json:"isIgnored" binding:"required"`
}

// updatePatternFlags 更新模式的 VIP / 忽略标记。
func (h *Handler) updatePatternFlags(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	pattern, err := h.urgency.SetPatternFlags(userID, c.Param("id"), *req.IsVIP, *req.IsIgnored)
	if err != nil {
		if errors.Is(err, storage.ErrPatternNotFound) {
			NotFound(c, MsgPatternNotFound)
			return
		}
		InternalError(c, MsgPatternUpdateFailed)
		return
	}

	Success(c, pattern)
}
