package gateway

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	gatewaydb "github.com/nao1215/regi/internal/gateway/db"
	"github.com/nao1215/regi/pkg/httpclient"
	"github.com/nao1215/regi/pkg/middleware"
	"github.com/nao1215/regi/pkg/ratelimit"
	"github.com/nao1215/regi/pkg/ttlcache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testJWTSecret    = "test-jwt-secret"
	testServiceToken = "test-service-token"
	testOrigin       = "http://localhost:3000"
)

// fakeClock は流量制限とロールキャッシュに注入するテスト用の時計。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

// userMock はuserサービスのロール解決APIを模倣する。
type userMock struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls int
	role  string
	admin bool
}

func newUserMock(t *testing.T, role string, admin bool) *userMock {
	t.Helper()

	m := &userMock{role: role, admin: admin}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != testServiceToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		m.mu.Lock()
		m.calls++
		role, admin := m.role, m.admin
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"role": role, "is_admin": admin})
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *userMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// salesMock はsalesサービスの集計プロシージャを模倣する。
// 受信したパスとボディを記録し、設定されたペイロードを返す。
type salesMock struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    int
	lastPath string
	lastBody map[string]any
	status   int
	payload  string
}

func newSalesMock(t *testing.T) *salesMock {
	t.Helper()

	m := &salesMock{status: http.StatusOK, payload: `{"items":[]}`}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		m.mu.Lock()
		m.calls++
		m.lastPath = r.URL.Path
		m.lastBody = body
		status, payload := m.status, m.payload
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *salesMock) setResponse(status int, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.payload = payload
}

func (m *salesMock) last() (string, map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPath, m.lastBody
}

// testGateway はテスト用に構築したゲートウェイ一式。
type testGateway struct {
	server *Server
	router *gin.Engine
	clock  *fakeClock
	user   *userMock
	sales  *salesMock
}

// 集計テストの基準時刻。2025-06-11は水曜日で、前のISO週は
// 2025-06-02（月）〜2025-06-08（日）になる。
var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

// setupTestGateway は本番と同じミドルウェア構成のゲートウェイを
// インメモリSQLiteとモックの下流サービスで構築する。
func setupTestGateway(t *testing.T) *testGateway {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// 監査ログの書き込みゴルーチンと読み取りが同じDBを見るよう接続を1本に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	clock := &fakeClock{t: testNow}
	user := newUserMock(t, "admin", true)
	sales := newSalesMock(t)

	router := gin.New()
	router.Use(recoverInternal())
	router.Use(middleware.CORS(allowedOrigins))

	s := &Server{
		router:      router,
		port:        "0",
		queries:     gatewaydb.New(sqlDB),
		db:          sqlDB,
		jwtSecret:   testJWTSecret,
		userClient:  httpclient.NewInternal(user.srv.URL, testServiceToken),
		salesClient: httpclient.NewInternal(sales.srv.URL, testServiceToken),
		roleCache:   ttlcache.NewWithClock[roleInfo](roleCacheTTL, clock),
		limiter:     ratelimit.NewWithClock(rateLimitBurst, rateLimitInterval, clock),
		now:         clock.Now,
	}
	s.setupRoutes()

	return &testGateway{server: s, router: router, clock: clock, user: user, sales: sales}
}

// adminToken は管理者ロール入りのJWTを発行するヘルパー関数。
func adminToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testJWTSecret, userID, userID+"@example.com", "admin", true)
	if err != nil {
		t.Fatalf("テスト用トークンの生成に失敗: %v", err)
	}
	return token
}

// staffToken は一般スタッフロール入りのJWTを発行するヘルパー関数。
func staffToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testJWTSecret, userID, userID+"@example.com", "staff", false)
	if err != nil {
		t.Fatalf("テスト用トークンの生成に失敗: %v", err)
	}
	return token
}

// rolelessToken はロールクレームなしのJWTを発行するヘルパー関数。
// ゲートウェイはuserサービスへのフォールバックでロールを解決する。
func rolelessToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testJWTSecret, userID, userID+"@example.com", "", false)
	if err != nil {
		t.Fatalf("テスト用トークンの生成に失敗: %v", err)
	}
	return token
}

// doRequest はOriginヘッダー付きのテストリクエストを実行する。
// tokenが空の場合はAuthorizationヘッダーを付けない。
func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reqBody = bytes.NewReader([]byte(raw))
		} else {
			jsonBytes, _ := json.Marshal(body)
			reqBody = bytes.NewReader(jsonBytes)
		}
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testOrigin)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// errorCode はレスポンスボディからerrorフィールドを取り出すヘルパー関数。
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("エラーレスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	code, _ := resp["error"].(string)
	return code
}

// TestCORS はすべてのコードパスでCORSヘッダーが付与されることを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("許可されたオリジンからのOPTIONSは204を返すこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		req := httptest.NewRequest(http.MethodOptions, "/reporting", nil)
		req.Header.Set("Origin", testOrigin)
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
		}
	})

	t.Run("成功レスポンスにCORSヘッダーが付くこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", adminToken(t, "user-1"), nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
		}
	})

	t.Run("認証エラーのレスポンスにもCORSヘッダーが付くこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		w := doRequest(g.router, http.MethodGet, "/reporting/status", "", nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
		}
	})

	t.Run("許可されていないオリジンにはCORSヘッダーを付けないこと", func(t *testing.T) {
		t.Parallel()

		g := setupTestGateway(t)

		req := httptest.NewRequest(http.MethodGet, "/reporting/status", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "user-1"))
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want 空", got)
		}
	})
}

// TestMethodNotAllowed はGET/POST以外のメソッドの拒否を検証する。
func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method+"は405を返すこと", func(t *testing.T) {
			t.Parallel()

			g := setupTestGateway(t)

			w := doRequest(g.router, method, "/reporting", adminToken(t, "user-1"), nil)

			if w.Code != http.StatusMethodNotAllowed {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusMethodNotAllowed)
			}
			if code := errorCode(t, w); code != "method_not_allowed" {
				t.Errorf("error = %q, want %q", code, "method_not_allowed")
			}
		})
	}
}

// TestNoRoute は未定義パスの応答を検証する。
func TestNoRoute(t *testing.T) {
	t.Parallel()

	g := setupTestGateway(t)

	w := doRequest(g.router, http.MethodGet, "/unknown/path", adminToken(t, "user-1"), nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
	}
	// 404はJSONではなくプレーンテキスト
	if ct := w.Header().Get("Content-Type"); strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, JSONでないこと", ct)
	}
}

// TestRecoverInternal はpanicが500 internal_errorに変換されることを検証する。
func TestRecoverInternal(t *testing.T) {
	t.Parallel()

	g := setupTestGateway(t)
	g.router.GET("/panic", func(_ *gin.Context) {
		panic("boom")
	})

	w := doRequest(g.router, http.MethodGet, "/panic", "", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if code := errorCode(t, w); code != "internal_error" {
		t.Errorf("error = %q, want %q", code, "internal_error")
	}
	// panic経路でもCORSヘッダーは維持される
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
}
