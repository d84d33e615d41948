package domain

import "time"

// TrashLabel 邮件进入回收站时附加的标签标记。
const TrashLabel = "TRASH"

// Message 表示镜像到本地的一封用户邮件。
//
// DeletedAt 非空等价于标签集合中含有 TrashLabel（软删除不变量），
// 两者必须通过 MarkTrashed / MarkRestored 同步修改。
type Message struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string `json:"userId" gorm:"type:varchar(36);index;not null"`
	RemoteID   string `json:"remoteId" gorm:"type:varchar(128);uniqueIndex"` // 邮件服务商侧的消息ID
	ThreadID   string `json:"threadId" gorm:"type:varchar(128);index"`
	Sender     string `json:"sender" gorm:"type:varchar(255);index"`
	SenderName string `json:"senderName" gorm:"type:varchar(255)"`
	Subject    string `json:"subject" gorm:"type:varchar(500)"`
	Snippet    string `json:"snippet" gorm:"type:text"`
	BodyText   string `json:"bodyText,omitempty" gorm:"type:text"`
	Labels     Labels `json:"labels" gorm:"type:text;serializer:json"`
	IsRead     bool   `json:"isRead" gorm:"default:false;index"`
	IsStarred  bool   `json:"isStarred" gorm:"default:false"`

	ReceivedAt time.Time  `json:"receivedAt" gorm:"index"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty" gorm:"index"` // 软删除时间戳，nil 表示邮件仍在收件箱

	// 紧急度分析结果
	IsUrgent          bool       `json:"isUrgent" gorm:"default:false;index"`
	UrgencyScore      int        `json:"urgencyScore" gorm:"default:0"`
	UrgencyReason     string     `json:"urgencyReason" gorm:"type:varchar(500)"`
	UrgencyAnalyzedAt *time.Time `json:"urgencyAnalyzedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Labels 邮件标签集合。
type Labels []string

// Contains 判断标签集合是否包含指定标签。
func (l Labels) Contains(label string) bool {
	for _, v := range l {
		if v == label {
			return true
		}
	}
	return false
}

// IsTrashed 判断邮件是否已软删除。
func (m *Message) IsTrashed() bool {
	return m.DeletedAt != nil
}

// MarkTrashed 将邮件标记为软删除，同时附加回收站标签。
func (m *Message) MarkTrashed(now time.Time) {
	if m.DeletedAt == nil {
		t := now
		m.DeletedAt = &t
	}
	if !m.Labels.Contains(TrashLabel) {
		m.Labels = append(m.Labels, TrashLabel)
	}
}

// MarkRestored 将邮件从回收站恢复，同时移除回收站标签。
func (m *Message) MarkRestored() {
	m.DeletedAt = nil
	labels := make(Labels, 0, len(m.Labels))
	for _, v := range m.Labels {
		if v != TrashLabel {
			labels = append(labels, v)
		}
	}
	m.Labels = labels
}

// AddLabel 附加一个标签（重复附加为空操作）。
func (m *Message) AddLabel(label string) {
	if label == "" || m.Labels.Contains(label) {
		return
	}
	m.Labels = append(m.Labels, label)
}
