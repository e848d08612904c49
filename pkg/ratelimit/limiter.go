// Package ratelimit はトークンバケット方式のレートリミッタを提供する。
//
// 呼び出し元ごとにバケットを保持し、一定間隔で1トークンずつ補充する。
// 補充はバックグラウンドタイマーではなく、チェック時に経過時間から
// まとめて計算する（遅延補充）。状態はプロセス内メモリにのみ存在し、
// インスタンスをまたいだ共有は行わない。
package ratelimit

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

// bucket は呼び出し元1つ分のトークンバケット状態。
type bucket struct {
	// tokens は現在保持しているトークン数。
	tokens int
	// lastRefill は最後に補充計算を行った時刻。
	// 補充時は経過した整数個分の間隔だけ進める（現在時刻にはリセットしない）。
	lastRefill time.Time
}

// Limiter は呼び出し元キーごとのトークンバケットレートリミッタ。
// すべてのメソッドはgoroutineセーフ。
type Limiter struct {
	// mu はbucketsへのアクセスを保護する。
	mu sync.Mutex
	// buckets は呼び出し元キーごとのバケット状態。
	buckets map[string]*bucket
	// burst はバケットの最大トークン数（バースト容量）。
	burst int
	// interval は1トークンを補充する間隔。
	interval time.Duration
	// clock は現在時刻の取得に使用するクロック。
	clock Clock
}

// New は新しいLimiterを生成する。
// burstはバースト容量、intervalは1トークンの補充間隔を指定する。
func New(burst int, interval time.Duration) *Limiter {
	return NewWithClock(burst, interval, systemClock{})
}

// NewWithClock はクロックを指定してLimiterを生成する。テスト用。
func NewWithClock(burst int, interval time.Duration, clock Clock) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		burst:    burst,
		interval: interval,
		clock:    clock,
	}
}

// Allow はキーに対応するバケットからトークンを1つ消費できるかを判定する。
// 初めて見るキーには満タンのバケットを割り当てる。
// トークンがあれば1つ消費してtrueを、なければfalseを返す。
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[key] = b
	} else {
		l.refill(b, now)
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// refill は経過時間に応じたトークン補充を行う。
// 複数間隔が経過していた場合はfloor(elapsed/interval)個分をまとめて補充し、
// lastRefillは経過した整数個分の間隔だけ進める。端数をリセットしないことで
// 補充タイミングのずれが蓄積しないようにしている。
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < l.interval {
		return
	}

	ticks := int(elapsed / l.interval)
	b.tokens += ticks
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(ticks) * l.interval)
}

// Tokens はキーに対応するバケットの現在のトークン数を返す。
// 補充計算を行った上で返すため、監視やテストでの状態確認に使用できる。
func (l *Limiter) Tokens(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return l.burst
	}
	l.refill(b, l.clock.Now())
	return b.tokens
}
