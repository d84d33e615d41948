package domain

import "time"

// PatternType 发件人模式的类型。
type PatternType string

const (
	PatternTypeSender  PatternType = "sender"
	PatternTypeKeyword PatternType = "keyword"
	PatternTypeDomain  PatternType = "domain"
)

// SenderPattern 记录用户对某一发件人域名的历史纠正统计。
//
// 计数只增不减（不做衰减）；IsIgnored 在评分时强制压制紧急判定，
// 优先于 IsVIP 生效。
type SenderPattern struct {
	ID           string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string      `json:"userId" gorm:"type:varchar(36);index:idx_pattern_key,unique;not null"`
	PatternType  PatternType `json:"patternType" gorm:"type:varchar(20);index:idx_pattern_key,unique"`
	PatternValue string      `json:"patternValue" gorm:"type:varchar(255);index:idx_pattern_key,unique"`

	TimesMarkedUrgent    int `json:"timesMarkedUrgent" gorm:"default:0"`
	TimesMarkedNotUrgent int `json:"timesMarkedNotUrgent" gorm:"default:0"`

	IsVIP     bool `json:"isVip" gorm:"default:false"`
	IsIgnored bool `json:"isIgnored" gorm:"default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FrequentlyUrgent 判断该模式是否属于"历史高频紧急"发件人：
// 紧急纠正次数超过非紧急纠正次数的两倍。
func (p *SenderPattern) FrequentlyUrgent() bool {
	return p.TimesMarkedUrgent > p.TimesMarkedNotUrgent*2
}
