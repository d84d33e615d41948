package mailstore

import "context"

// Client 上游邮件服务商的最小操作面。
//
// 所有操作都是尽力而为：上游失败由调用方决定如何降级，
// 本地镜像始终是权威状态。
type Client interface {
	// Trash 将邮件移入服务商回收站
	Trash(ctx context.Context, remoteID string) error
	// Restore 将邮件移出服务商回收站
	Restore(ctx context.Context, remoteID string) error
	// ApplyLabel 为邮件附加标签（不存在时自动创建）
	ApplyLabel(ctx context.Context, remoteID, label string) error
}

// Noop 空实现，未配置上游凭证时使用。
type Noop struct{}

func (Noop) Trash(ctx context.Context, remoteID string) error             { return nil }
func (Noop) Restore(ctx context.Context, remoteID string) error           { return nil }
func (Noop) ApplyLabel(ctx context.Context, remoteID, label string) error { return nil }
