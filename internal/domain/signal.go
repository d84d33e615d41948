package domain

import (
	"fmt"
	"strings"
)

// SignalReason 一条命中的紧急度信号及其得分。
type SignalReason struct {
	Name     string `json:"name"`     // 信号名称，如 keyword / deadline / vip_sender
	Points   int    `json:"points"`   // 贡献分值（忽略发件人为负值）
	Evidence string `json:"evidence"` // 命中的原文片段或说明
}

// UrgencySignal 单次紧急度评估的完整结果。
//
// 每次评估现算现用，只有分数与简述会落库到 Message 上。
type UrgencySignal struct {
	Score     int            `json:"score"` // 0-100
	Reasons   []SignalReason `json:"reasons"`
	IsUrgent  bool           `json:"isUrgent"`
	Threshold int            `json:"threshold"`
}

// Summary 将命中的信号拼接为落库用的简述。
func (s *UrgencySignal) Summary() string {
	if len(s.Reasons) == 0 {
		return "无明显紧急信号"
	}
	parts := make([]string, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		parts = append(parts, fmt.Sprintf("%s(%+d)", r.Evidence, r.Points))
	}
	return strings.Join(parts, "; ")
}
