package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockKeyEmpty 锁键为空
var ErrLockKeyEmpty = errors.New("lock key is empty")

// 仅持有者可释放
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 分布式互斥锁句柄
type Lock struct {
	key   string
	token string
	held  bool
}

// Held 是否持有锁（Redis 未启用时视为本地持有）
func (l *Lock) Held() bool {
	return l != nil && l.held
}

func lockKey(key string) string {
	return "lock:" + strings.TrimSpace(key)
}

// TryLock 尝试获取锁；Redis 未启用时直接视为获取成功
func TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrLockKeyEmpty
	}
	lock := &Lock{key: lockKey(key), token: uuid.NewString()}
	if !Enabled() {
		lock.held = true
		return lock, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := redisClient.SetNX(ctx, buildKey(lock.key), lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	lock.held = ok
	return lock, nil
}

// Unlock 释放锁，锁已过期或被他人持有时不做任何事
func (l *Lock) Unlock(ctx context.Context) error {
	if l == nil || !l.held {
		return nil
	}
	l.held = false
	if !Enabled() {
		return nil
	}
	return unlockScript.Run(ctx, redisClient, []string{buildKey(l.key)}, l.token).Err()
}
