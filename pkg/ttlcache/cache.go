// Package ttlcache は有効期限付きのインメモリキャッシュを提供する。
//
// エントリは固定TTLで期限切れになり、明示的な無効化パスは持たない。
// 状態はプロセス内メモリにのみ存在し、インスタンス間では共有されない。
package ttlcache

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
// テストで決定的な時刻を注入するために使用する。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
}

// systemClock はtime.Nowをそのまま返すClock実装。
type systemClock struct{}

// Now は現在時刻を返す。
func (systemClock) Now() time.Time { return time.Now() }

// entry はキャッシュエントリ1件分の値と有効期限。
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache は固定TTLのインメモリキャッシュ。
// すべてのメソッドはgoroutineセーフ。
type Cache[V any] struct {
	// mu はentriesへのアクセスを保護する。
	mu sync.Mutex
	// entries はキーごとのキャッシュエントリ。
	entries map[string]entry[V]
	// ttl はエントリの有効期間。
	ttl time.Duration
	// clock は現在時刻の取得に使用するクロック。
	clock Clock
}

// New は指定されたTTLを持つ新しいCacheを生成する。
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithClock[V](ttl, systemClock{})
}

// NewWithClock はクロックを指定してCacheを生成する。テスト用。
func NewWithClock[V any](ttl time.Duration, clock Clock) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get はキーに対応する未期限切れの値を返す。
// 期限切れのエントリは削除した上で見つからなかったものとして扱う。
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set はキーに値を設定する。有効期限は現在時刻からTTL後になる。
// 既存のエントリは上書きされ、有効期限も更新される。
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Len は期限切れを含む現在のエントリ数を返す。テストと監視用。
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
