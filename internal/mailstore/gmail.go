package mailstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxpilot/backend/internal/config"
)

const gmailUserID = "me"

// GmailClient 基于 Gmail API 的上游客户端。
//
// 所有调用经过令牌桶限速，避免触发服务商配额限制。
type GmailClient struct {
	svc     *gmail.Service
	limiter *rate.Limiter

	mu     sync.Mutex
	labels map[string]string // 标签名 -> 标签ID 缓存
}

// NewGmailClient 从 OAuth2 凭证文件创建 Gmail 客户端。
func NewGmailClient(ctx context.Context, cfg *config.MailStoreConfig) (*GmailClient, error) {
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return &GmailClient{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		labels:  make(map[string]string),
	}, nil
}

// loadToken 从文件加载 OAuth2 令牌
func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

// Trash 将邮件移入服务商回收站
func (c *GmailClient) Trash(ctx context.Context, remoteID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.svc.Users.Messages.Trash(gmailUserID, remoteID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("messages.Trash failed: %w", err)
	}
	return nil
}

// Restore 将邮件移出服务商回收站
func (c *GmailClient) Restore(ctx context.Context, remoteID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.svc.Users.Messages.Untrash(gmailUserID, remoteID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("messages.Untrash failed: %w", err)
	}
	return nil
}

// ApplyLabel 为邮件附加标签，标签不存在时自动创建。
func (c *GmailClient) ApplyLabel(ctx context.Context, remoteID, label string) error {
	labelID, err := c.ensureLabel(ctx, label)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = c.svc.Users.Messages.Modify(gmailUserID, remoteID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("messages.Modify failed: %w", err)
	}
	return nil
}

// ensureLabel 查找标签 ID，不存在时创建，结果缓存在进程内。
func (c *GmailClient) ensureLabel(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if id, ok := c.labels[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	list, err := c.svc.Users.Labels.List(gmailUserID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("labels.List failed: %w", err)
	}
	for _, l := range list.Labels {
		if l.Name == name {
			c.mu.Lock()
			c.labels[name] = l.Id
			c.mu.Unlock()
			return l.Id, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	created, err := c.svc.Users.Labels.Create(gmailUserID, &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("labels.Create failed: %w", err)
	}

	c.mu.Lock()
	c.labels[name] = created.Id
	c.mu.Unlock()
	return created.Id, nil
}
