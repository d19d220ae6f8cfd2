package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// RetryPolicy は接続リトライの方針。
// n回目の失敗後の待機時間は BaseDelay * Factor^(n-1)、MaxDelayで頭打ちにする。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy はデフォルトのリトライ方針を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Factor:      2,
		MaxDelay:    30 * time.Second,
	}
}

// Delay はattempt回目（1始まり）の失敗後に待機する時間を返す。
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// OpenFunc はデータベースハンドルを開く関数。テストで差し替える。
type OpenFunc func(databaseURL string, opts PoolOptions) (*sql.DB, error)

// Connector はリトライ方針付きでデータベースへ接続する接続マネージャー。
// 状態はインスタンスに閉じており、複数の呼び出し元から安全に共有できる。
type Connector struct {
	databaseURL string
	opts        PoolOptions
	policy      RetryPolicy
	logger      *slog.Logger

	open      OpenFunc
	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt func(success bool)
}

// NewConnector はConnectorを生成する。
func NewConnector(databaseURL string, opts PoolOptions, policy RetryPolicy, logger *slog.Logger) *Connector {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		databaseURL: databaseURL,
		opts:        opts,
		policy:      policy,
		logger:      logger,
		open:        Open,
		sleep:       sleepContext,
	}
}

// OnAttempt は接続試行ごとに結果を受け取る関数を設定する。メトリクス記録に使う。
func (c *Connector) OnAttempt(fn func(success bool)) *Connector {
	c.onAttempt = fn
	return c
}

// Connect はデータベースに接続し、Pingが成功したハンドルを返す。
// 失敗時はRetryPolicyに従って待機して再試行し、MaxAttempts回失敗したら最後のエラーを返す。
func (c *Connector) Connect(ctx context.Context) (*sql.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		db, err := c.attempt(ctx)
		if c.onAttempt != nil {
			c.onAttempt(err == nil)
		}
		if err == nil {
			if attempt > 1 {
				c.logger.Info("データベースに接続しました", slog.Int("attempt", attempt))
			}
			return db, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, fmt.Errorf("database connect aborted: %w", err)
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn("データベース接続に失敗しました。再試行します",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("database connect aborted: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", c.policy.MaxAttempts, lastErr)
}

func (c *Connector) attempt(ctx context.Context) (*sql.DB, error) {
	db, err := c.open(c.databaseURL, c.opts)
	if err != nil {
		return nil, err
	}

	pingCtx := ctx
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
