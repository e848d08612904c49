package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/regi/pkg/middleware"
)

// expiredToken は有効期限切れのJWTを発行するヘルパー関数。
func expiredToken(t *testing.T, userID string) string {
	t.Helper()

	claims := middleware.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "regi-user",
		},
		UserID:  userID,
		Role:    "admin",
		IsAdmin: true,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("期限切れトークンの生成に失敗: %v", err)
	}
	return signed
}

// TestAuthenticateMissingToken はトークン欠如時の振る舞いを検証する。
func TestAuthenticateMissingToken(t *testing.T) {
	t.Parallel()

	t.Run("Authorizationヘッダーなしはmissing_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", "", nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "missing_token" {
			t.Errorf("error = %q, want %q", code, "missing_token")
		}
		// トークンがない場合はロール解決バックエンドを呼ばない
		if g.user.callCount() != 0 {
			t.Errorf("userサービス呼び出し回数 = %d, want 0", g.user.callCount())
		}
	})

	t.Run("Bearerプレフィックスなしはmissing_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequestRawAuth(g, "Basic dXNlcjpwYXNz")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "missing_token" {
			t.Errorf("error = %q, want %q", code, "missing_token")
		}
	})

	t.Run("空のBearerトークンはmissing_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequestRawAuth(g, "Bearer ")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "missing_token" {
			t.Errorf("error = %q, want %q", code, "missing_token")
		}
		if g.user.callCount() != 0 {
			t.Errorf("userサービス呼び出し回数 = %d, want 0", g.user.callCount())
		}
	})
}

// doRequestRawAuth はAuthorizationヘッダーを生の値で指定してリクエストを実行する。
func doRequestRawAuth(g *testGateway, authValue string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/reporting/status", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Authorization", authValue)

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

// TestAuthenticateInvalidToken は無効なトークンの拒否を検証する。
func TestAuthenticateInvalidToken(t *testing.T) {
	t.Parallel()

	t.Run("署名が壊れたトークンはinvalid_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", "not-a-valid-jwt", nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "invalid_token" {
			t.Errorf("error = %q, want %q", code, "invalid_token")
		}
	})

	t.Run("期限切れトークンはinvalid_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", expiredToken(t, "user-1"), nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "invalid_token" {
			t.Errorf("error = %q, want %q", code, "invalid_token")
		}
	})

	t.Run("ロール解決バックエンドに到達できない場合はinvalid_tokenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		g.user.srv.Close()

		w := doRequest(g.router, http.MethodGet, "/reporting/status", rolelessToken(t, "user-1"), nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if code := errorCode(t, w); code != "invalid_token" {
			t.Errorf("error = %q, want %q", code, "invalid_token")
		}
	})
}

// TestRequireAdmin は管理者権限の確認を検証する。
func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	t.Run("非管理者はどのパスでもforbiddenを返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		token := staffToken(t, "staff-1")

		for _, pathAndMethod := range []struct {
			method, path string
		}{
			{http.MethodGet, "/reporting"},
			{http.MethodGet, "/reporting/status"},
			{http.MethodPost, "/reporting"},
		} {
			w := doRequest(g.router, pathAndMethod.method, pathAndMethod.path, token, nil)
			if w.Code != http.StatusForbidden {
				t.Errorf("%s %s: ステータスコード = %d, want %d",
					pathAndMethod.method, pathAndMethod.path, w.Code, http.StatusForbidden)
				continue
			}
			if code := errorCode(t, w); code != "forbidden" {
				t.Errorf("%s %s: error = %q, want %q",
					pathAndMethod.method, pathAndMethod.path, code, "forbidden")
			}
		}
	})
}

// TestRoleCache はロール解決結果のキャッシュを検証する。
func TestRoleCache(t *testing.T) {
	t.Parallel()

	t.Run("60秒以内の再解決はバックエンドを呼ばないこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		token := rolelessToken(t, "user-1")

		w := doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("1回目のステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if g.user.callCount() != 1 {
			t.Fatalf("userサービス呼び出し回数 = %d, want 1", g.user.callCount())
		}

		g.clock.Advance(30 * time.Second)

		w = doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("2回目のステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if g.user.callCount() != 1 {
			t.Errorf("userサービス呼び出し回数 = %d, want 1（キャッシュヒット）", g.user.callCount())
		}
	})

	t.Run("TTL経過後はバックエンドに再問い合わせすること", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		token := rolelessToken(t, "user-1")

		doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		g.clock.Advance(61 * time.Second)
		doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)

		if g.user.callCount() != 2 {
			t.Errorf("userサービス呼び出し回数 = %d, want 2", g.user.callCount())
		}
	})
}

// TestRateLimit は呼び出し元ごとの流量制限を検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("バースト上限まで許可され11回目で拒否されること", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		token := adminToken(t, "user-1")

		for i := 0; i < rateLimitBurst; i++ {
			w := doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}

		w := doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("11回目のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if code := errorCode(t, w); code != "rate_limited" {
			t.Errorf("error = %q, want %q", code, "rate_limited")
		}
	})

	t.Run("6秒待つとちょうど1トークンだけ回復すること", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)
		token := adminToken(t, "user-1")

		for i := 0; i < rateLimitBurst; i++ {
			doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		}

		g.clock.Advance(rateLimitInterval)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("回復後のステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		w = doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("回復トークン消費後のステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
	})

	t.Run("呼び出し元ごとに独立して制限されること", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		for i := 0; i < rateLimitBurst; i++ {
			doRequest(g.router, http.MethodGet, "/reporting/status", adminToken(t, "user-1"), nil)
		}

		w := doRequest(g.router, http.MethodGet, "/reporting/status", adminToken(t, "user-2"), nil)
		if w.Code != http.StatusOK {
			t.Errorf("別ユーザーのステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("無効なトークンはトークンを消費しないこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		// 認証は流量制限より先に行われるため、無効なリクエストを
		// 何度受けても有効な呼び出し元のバーストは減らない
		for i := 0; i < 20; i++ {
			doRequest(g.router, http.MethodGet, "/reporting/status", "broken-token", nil)
		}

		token := adminToken(t, "user-1")
		for i := 0; i < rateLimitBurst; i++ {
			w := doRequest(g.router, http.MethodGet, "/reporting/status", token, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("%d回目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}
	})
}
