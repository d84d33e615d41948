package domain

import "time"

// ActionOperation 批量操作的类型。
type ActionOperation string

const (
	OperationTrash   ActionOperation = "trash"
	OperationRestore ActionOperation = "restore"
	OperationLabel   ActionOperation = "label"
)

// ActionState 待确认操作的状态机状态。
//
// proposed 为唯一非终态：proposed -> confirmed / cancelled / expired。
type ActionState string

const (
	ActionStateProposed  ActionState = "proposed"
	ActionStateConfirmed ActionState = "confirmed"
	ActionStateCancelled ActionState = "cancelled"
	ActionStateExpired   ActionState = "expired"
)

// CandidateItem 候选集中一封邮件的展示信息。
type CandidateItem struct {
	MessageID  string    `json:"messageId"`
	RemoteID   string    `json:"remoteId"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// PendingAction 一次待用户确认的批量操作提案。
//
// Candidates 在创建后不可变，确认时执行的就是提案时刻捕获的候选集，
// 绝不在确认时重新检索。
type PendingAction struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID string          `json:"conversationId" gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID         string          `json:"userId" gorm:"type:varchar(36);index;not null"`
	Operation      ActionOperation `json:"operation" gorm:"type:varchar(20)"`
	Label          string          `json:"label,omitempty" gorm:"type:varchar(100)"` // Operation 为 label 时的目标标签
	Candidates     []CandidateItem `json:"candidates" gorm:"type:text;serializer:json"`
	State          ActionState     `json:"state" gorm:"type:varchar(20);index"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

// Expired 在指定时间判断提案是否已过期。
func (a *PendingAction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Terminal 判断状态是否为终态。
func (a *PendingAction) Terminal() bool {
	return a.State != ActionStateProposed
}
