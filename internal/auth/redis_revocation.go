package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedKeyPrefix = "revoked:"

// RedisRevocationStore はRedisに失効一覧を保持するRevocationStore実装。
// 複数インスタンス間で失効状態を共有する。キーはトークンの残り有効期間で自動的に消える。
type RedisRevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocationStore はRedis URLから接続を確立し、RedisRevocationStoreを生成する。
func NewRedisRevocationStore(ctx context.Context, redisURL string) (*RedisRevocationStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRevocationStoreWithClient(client), nil
}

// NewRedisRevocationStoreWithClient は既存のクライアントからRedisRevocationStoreを生成する。
func NewRedisRevocationStoreWithClient(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, now: time.Now}
}

// Revoke はSETNXでjtiを登録する。既に存在する場合はfalseを返す。
// 有効期限を過ぎたトークンは検証で拒否されるため、登録しない。
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return true, nil
	}
	ok, err := s.client.SetNX(ctx, revokedKeyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// IsRevoked はjtiが失効済みかどうかを返す。
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// Close はRedis接続を閉じる。
func (s *RedisRevocationStore) Close() error {
	return s.client.Close()
}

// compile-time interface check
var _ RevocationStore = (*RedisRevocationStore)(nil)
