package httptransport

import (
	"errors"
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inboxpilot/backend/internal/config"
	"inboxpilot/backend/internal/domain"
	"inboxpilot/backend/internal/health"
	"inboxpilot/backend/internal/middleware"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/service"
	"inboxpilot/backend/internal/storage"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	store     storage.MessageRepository
	urgency   *service.UrgencyService
	actions   *service.ActionService
	assistant *service.AssistantService
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	Store            storage.Store
	UrgencyService   *service.UrgencyService
	ActionService    *service.ActionService
	AssistantService *service.AssistantService
	Metrics          *monitoring.Metrics
	HealthChecker    *health.HealthChecker
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(middleware.RecoveryHandler(deps.Logger))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		store:     deps.Store,
		urgency:   deps.UrgencyService,
		actions:   deps.ActionService,
		assistant: deps.AssistantService,
	}

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.HealthChecker.CheckHealth())
		})
		router.GET("/health/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/health/ready", gin.WrapH(deps.HealthChecker.Handler()))
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		{
			messageRoutes.POST("", handler.ingestMessage)
			messageRoutes.GET("", handler.listMessages)
			messageRoutes.GET("/urgent", handler.listUrgentMessages)
			messageRoutes.GET("/:id", handler.getMessage)
			messageRoutes.POST("/:id/classify", handler.classifyMessage)
			messageRoutes.POST("/:id/correction", handler.recordCorrection)
		}

		// ========== Pattern Routes ==========
		patternRoutes := v1.Group("/patterns")
		{
			patternRoutes.GET("", handler.listPatterns)
			patternRoutes.PATCH("/:id", handler.updatePatternFlags)
		}

		// ========== Assistant Routes ==========
		assistantRoutes := v1.Group("/assistant")
		{
			assistantRoutes.POST("/actions", handler.assistantMessage)
			assistantRoutes.GET("/actions/:conversationId", handler.getPendingAction)
			assistantRoutes.POST("/actions/:conversationId/respond", handler.respondToAction)
		}
	}

	return router
}

// requireUserID 从请求头提取用户标识。
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		Unauthorized(c, MsgMissingUserID)
		return "", false
	}
	return userID, true
}

type ingestMessageRequest struct {
	ID         string    `json:"id"`
	RemoteID   string    `json:"remoteId"`
	ThreadID   string    `json:"threadId"`
	Sender     string    `json:"sender" binding:"required"`
	SenderName string    `json:"senderName"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	BodyText   string    `json:"bodyText"`
	IsRead     bool      `json:"isRead"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type messageListResponse struct {
	Items []domain.Message `json:"items"`
	Count int              `json:"count"`
}

// ingestMessage 写入一封镜像邮件并触发后台紧急度评估。
func (h *Handler) ingestMessage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ingestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	msg := &domain.Message{
		ID:         req.ID,
		UserID:     userID,
		RemoteID:   req.RemoteID,
		ThreadID:   req.ThreadID,
		Sender:     req.Sender,
		SenderName: req.SenderName,
		Subject:    req.Subject,
		Snippet:    req.Snippet,
		BodyText:   req.BodyText,
		IsRead:     req.IsRead,
		ReceivedAt: req.ReceivedAt,
		CreatedAt:  time.Now(),
	}
	if err := h.store.SaveMessage(msg); err != nil {
		InternalError(c, MsgMessageCreateFailed)
		return
	}

	// 新邮件排队做后台评估，不阻塞写入
	h.urgency.ClassifyAsync(userID, msg.ID)

	Created(c, msg)
}

// listMessages 返回最近的镜像邮件。
func (h *Handler) listMessages(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	messages, err := h.store.ListRecentMessages(userID, parseLimit(c, 50))
	if err != nil {
		InternalError(c, MsgMessageListFailed)
		return
	}

	Success(c, messageListResponse{Items: messages, Count: len(messages)})
}

// listUrgentMessages 返回当前判定为紧急的邮件。
func (h *Handler) listUrgentMessages(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	messages, err := h.urgency.ListUrgent(userID, parseLimit(c, 50))
	if err != nil {
		InternalError(c, MsgUrgentListFailed)
		return
	}

	Success(c, messageListResponse{Items: messages, Count: len(messages)})
}

// getMessage 查看单封邮件。
func (h *Handler) getMessage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	msg, err := h.store.GetMessage(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, msg)
}

// classifyMessage 对一封邮件做同步紧急度评估。
func (h *Handler) classifyMessage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	signal, err := h.urgency.Classify(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgClassifyFailed)
		return
	}

	Success(c, signal)
}

type correctionRequest struct {
	IsUrgent *bool `json:"isUrgent" binding:"required"`
}

// recordCorrection 记录用户对紧急判定的纠正。
func (h *Handler) recordCorrection(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	pattern, err := h.urgency.RecordCorrection(userID, c.Param("id"), *req.IsUrgent)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgCorrectionFailed)
		return
	}

	Success(c, pattern)
}

// parseLimit 解析 limit 查询参数，越界时退回默认值。
func parseLimit(c *gin.Context, fallback int) int {
	var input struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&input); err != nil || input.Limit <= 0 || input.Limit > 200 {
		return fallback
	}
	return input.Limit
}
