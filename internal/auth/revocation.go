package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore は失効済みトークンID（jti）の一覧を管理する。
// 失効情報はトークンの有効期限まで保持すればよい。
type RevocationStore interface {
	// Revoke はjtiを失効させる。新たに失効させた場合はtrue、既に失効済みの場合はfalseを返す。
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	// IsRevoked はjtiが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationStore はプロセス内メモリに失効一覧を保持するRevocationStore実装。
// 単一インスタンス構成向け。期限切れのエントリはバックグラウンドで定期的に削除する。
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRevocationStore はMemoryRevocationStoreを生成し、クリーンアップgoroutineを開始する。
// cleanupIntervalが0以下の場合は1分とする。
func NewMemoryRevocationStore(cleanupInterval time.Duration) *MemoryRevocationStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

// Stop はクリーンアップgoroutineを停止する。複数回呼んでもよい。
func (s *MemoryRevocationStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// Revoke はjtiを失効させる。チェックと登録は同一ロック内で行う。
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[jti]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.entries[jti] = expiresAt
	return true, nil
}

// IsRevoked はjtiが失効済みかどうかを返す。
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[jti]
	return ok && s.now().Before(exp), nil
}

// Len は保持中のエントリ数を返す。
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-s.stopCh:
			return
		}
	}
}

// prune は有効期限を過ぎたエントリを削除する。
func (s *MemoryRevocationStore) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for jti, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, jti)
		}
	}
}

// compile-time interface check
var _ RevocationStore = (*MemoryRevocationStore)(nil)
