package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dskhairnar/backend-acme/internal/metrics"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
// Window内にMaxリクエストまでを許可し、トークンは均等に補充する。
type RateLimiterConfig struct {
	Window          time.Duration
	GeneralMax      int           // API全般の上限
	AuthMax         int           // 登録・ログイン試行の上限
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 100 req/15min/client、認証試行 10 req/15min/client。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Window:          15 * time.Minute,
		GeneralMax:      100,
		AuthMax:         10,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は同一設定のリミッターをクライアントキーごとに管理する。
type limiterSet struct {
	name     string
	limit    rate.Limit
	interval time.Duration // 1トークンの補充間隔
	burst    int
	mu       sync.RWMutex
	limiters map[string]*clientLimiter
}

func newLimiterSet(name string, window time.Duration, n int) *limiterSet {
	if n < 1 {
		n = 1
	}
	return &limiterSet{
		name:     name,
		limit:    rate.Every(window / time.Duration(n)),
		interval: window / time.Duration(n),
		burst:    n,
		limiters: make(map[string]*clientLimiter),
	}
}

// getOrCreate はクライアントのリミッターを取得または作成する。
func (s *limiterSet) getOrCreate(key string) *rate.Limiter {
	s.mu.RLock()
	cl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		cl.lastAccess = time.Now()
		s.mu.Unlock()
		return cl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if cl, exists := s.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(s.limit, s.burst)
	s.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (s *limiterSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

func (s *limiterSet) prune(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントごとのレート制限を管理する。
// API全般のレート制限と認証試行のレート制限の2種類を提供する。
type RateLimiter struct {
	config    RateLimiterConfig
	general   *limiterSet
	auth      *limiterSet
	collector metrics.MetricsCollector

	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, collector metrics.MetricsCollector) *RateLimiter {
	if config.Window <= 0 {
		config.Window = DefaultRateLimiterConfig().Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	if collector == nil {
		collector = metrics.Nop{}
	}

	rl := &RateLimiter{
		config:    config,
		general:   newLimiterSet("general", config.Window, config.GeneralMax),
		auth:      newLimiterSet("auth", config.Window, config.AuthMax),
		collector: collector,
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証済みであればユーザーID、そうでなければクライアントIPで識別する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// AuthMiddleware は登録・ログイン専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作し、常にクライアントIPで識別する。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.auth)
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// AuthLimiterCount は現在管理されている認証試行リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.count()
}

func (rl *RateLimiter) middleware(set *limiterSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if set == rl.auth {
				key = clientIP(r)
			}

			if !set.getOrCreate(key).Allow() {
				rl.collector.RecordRateLimited(set.name)
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", set.name),
				)
				writeRateLimitResponse(w, set.interval)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからウィンドウとクリーンアップ間隔の長い方の2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := 2 * max(rl.config.CleanupInterval, rl.config.Window)
	now := time.Now()
	rl.general.prune(now, ttl)
	rl.auth.prune(now, ttl)
}

// clientKey は認証済みならユーザーID、それ以外はクライアントIPを返す。
func clientKey(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return "user:" + p.ID.String()
	}
	return clientIP(r)
}

// clientIP はRemoteAddrからポートを除いたIPを返す。
// プロキシ配下ではchiのRealIPミドルウェアがRemoteAddrを書き換えている前提。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, interval time.Duration) {
	retryAfterSec := int(math.Ceil(interval.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	response.Error(w, model.NewRateLimitedError())
}
