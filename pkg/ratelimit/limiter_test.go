package ratelimit

import (
	"testing"
	"time"
)

// fakeClock はテスト用の手動で進められるクロック。
type fakeClock struct {
	now time.Time
}

// Now は現在の擬似時刻を返す。
func (f *fakeClock) Now() time.Time { return f.now }

// Advance は擬似時刻をdだけ進める。
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// TestLimiterAllow はトークンバケットの基本動作を検証する。
func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	t.Run("バースト容量分のリクエストは連続で許可されること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for i := range 10 {
			if !l.Allow("user-1") {
				t.Fatalf("%d回目のリクエストが拒否された", i+1)
			}
		}
	})

	t.Run("バースト容量を超えた11回目のリクエストは拒否されること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for range 10 {
			l.Allow("user-1")
		}
		if l.Allow("user-1") {
			t.Fatal("11回目のリクエストが許可された")
		}
	})

	t.Run("補充間隔の経過後にちょうど1トークン補充されること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for range 10 {
			l.Allow("user-1")
		}
		if l.Allow("user-1") {
			t.Fatal("枯渇したバケットからの消費が許可された")
		}

		clock.Advance(6 * time.Second)
		if !l.Allow("user-1") {
			t.Fatal("補充後のリクエストが拒否された")
		}
		if l.Allow("user-1") {
			t.Fatal("補充は1トークンのはずが2回許可された")
		}
	})

	t.Run("複数間隔の経過はまとめて補充されること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for range 10 {
			l.Allow("user-1")
		}

		// 20秒経過 = floor(20/6) = 3トークン分
		clock.Advance(20 * time.Second)
		for i := range 3 {
			if !l.Allow("user-1") {
				t.Fatalf("補充された%d個目のトークン消費が拒否された", i+1)
			}
		}
		if l.Allow("user-1") {
			t.Fatal("補充は3トークンのはずが4回許可された")
		}
	})

	t.Run("端数の経過時間が次の補充に引き継がれること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for range 10 {
			l.Allow("user-1")
		}

		// 8秒経過: 1トークン補充、lastRefillは6秒分だけ進む
		clock.Advance(8 * time.Second)
		if !l.Allow("user-1") {
			t.Fatal("1回目の補充トークン消費が拒否された")
		}

		// さらに4秒経過: 前回の端数2秒と合わせて6秒で1トークン補充される
		clock.Advance(4 * time.Second)
		if !l.Allow("user-1") {
			t.Fatal("端数が引き継がれていれば補充されているはずのトークンが拒否された")
		}
	})

	t.Run("補充してもバースト容量を超えないこと", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		l.Allow("user-1")

		// 長時間放置してもバケットは満タンで頭打ちになる
		clock.Advance(10 * time.Minute)
		if got := l.Tokens("user-1"); got != 10 {
			t.Errorf("Tokens() = %d, want 10", got)
		}
	})

	t.Run("キーごとに独立したバケットを持つこと", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(10, 6*time.Second, clock)

		for range 10 {
			l.Allow("user-1")
		}
		if l.Allow("user-1") {
			t.Fatal("user-1のバケットは枯渇しているはず")
		}
		if !l.Allow("user-2") {
			t.Fatal("user-2のバケットはまだ満タンのはず")
		}
	})

	t.Run("初めて見るキーには満タンのバケットが割り当てられること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := NewWithClock(3, 6*time.Second, clock)

		if got := l.Tokens("new-user"); got != 3 {
			t.Errorf("Tokens() = %d, want 3", got)
		}
	})
}
