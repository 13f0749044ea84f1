package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/license-ledger/internal/config"
	"github.com/license-ledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 资金与口令相关的高优先级队列
	CriticalQueue = constants.QueueCritical
	// OtpDeliverMaxRetry 口令投递的最大重试次数
	OtpDeliverMaxRetry = 2

	otpDeliverTimeout = 15 * time.Second
)

// Client 队列客户端封装
type Client struct {
	client        *asynq.Client
	enabled       bool
	defaultQueue  string
	criticalQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue, criticalQueue: CriticalQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:        client,
		enabled:       true,
		defaultQueue:  DefaultQueue,
		criticalQueue: CriticalQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePurchaseConfirmed 推送购买单确认事件（按购买单号去重）
func (c *Client) EnqueuePurchaseConfirmed(payload PurchaseConfirmedPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPurchaseConfirmedTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{
		asynq.Queue(c.criticalQueue),
		asynq.TaskID("purchase:" + payload.PurchaseNo),
		asynq.MaxRetry(10),
	}, opts...)
	_, err = c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueWithdrawalStateChanged 推送提现状态变更通知
func (c *Client) EnqueueWithdrawalStateChanged(payload WithdrawalStateChangedPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewWithdrawalStateChangedTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{asynq.Queue(c.defaultQueue), asynq.MaxRetry(5)}, opts...)
	_, err = c.client.Enqueue(task, options...)
	return err
}

// EnqueueOtpDeliver 推送口令投递任务，过期后不再投递
func (c *Client) EnqueueOtpDeliver(payload OtpDeliverPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewOtpDeliverTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, otpDeliverOptions(c.criticalQueue, payload)...)
	return err
}

// otpDeliverOptions 载荷含明文口令，限制重试次数并在完成后立即删除
func otpDeliverOptions(queueName string, payload OtpDeliverPayload) []asynq.Option {
	options := []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(OtpDeliverMaxRetry),
		asynq.Timeout(otpDeliverTimeout),
		asynq.Retention(0),
	}
	if !payload.ExpiresAt.IsZero() {
		options = append(options, asynq.Deadline(payload.ExpiresAt))
	}
	return options
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1, CriticalQueue: 2}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
