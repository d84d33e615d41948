package httptransport

import (
	"inboxpilot/backend/internal/service"
	"inboxpilot/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 存储错误
	storage.ErrMessageNotFound: "邮件不存在",
	storage.ErrPatternNotFound: "发件人模式不存在",
	storage.ErrActionNotFound:  "待确认操作不存在",

	// 助手错误
	service.ErrAmbiguousInstruction: "没有解析出可用的筛选条件",
	service.ErrNoCandidates:         "没有找到符合条件的邮件",
	service.ErrNothingPending:       "当前没有待确认的操作",
	service.ErrNotAnInstruction:     "消息中没有可识别的批量操作意图",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgMissingUserID  = "缺少 X-User-ID 请求头"

	// 邮件相关
	MsgMessageCreateFailed = "保存邮件失败"
	MsgMessageNotFound     = "邮件不存在"
	MsgMessageListFailed   = "获取邮件列表失败"

	// 紧急度相关
	MsgClassifyFailed   = "紧急度评估失败"
	MsgCorrectionFailed = "记录纠正失败"
	MsgUrgentListFailed = "获取紧急邮件列表失败"

	// 模式相关
	MsgPatternListFailed   = "获取发件人模式列表失败"
	MsgPatternNotFound     = "发件人模式不存在"
	MsgPatternUpdateFailed = "更新发件人模式失败"

	// 助手相关
	MsgAssistantFailed = "处理助手消息失败"
	MsgNothingPending  = "当前没有待确认的操作"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
