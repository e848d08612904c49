package gateway

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	gatewaydb "github.com/nao1215/regi/internal/gateway/db"
	"github.com/nao1215/regi/pkg/httpclient"
	"github.com/nao1215/regi/pkg/middleware"
	"github.com/nao1215/regi/pkg/ratelimit"
	"github.com/nao1215/regi/pkg/ttlcache"
)

// 流量制限の設定。各呼び出し元はバースト10リクエストまで、
// 以降6秒ごとに1リクエスト分が回復する。
const (
	rateLimitBurst    = 10
	rateLimitInterval = 6 * time.Second
)

// roleCacheTTL はロール解決結果のキャッシュ保持期間。
const roleCacheTTL = 60 * time.Second

// allowedOrigins はCORSで許可するローカル開発用オリジンの一覧。
var allowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// Server はレポート要求ゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。監査ログの書き込みに使用する。
	queries *gatewaydb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// userClient はuserサービスのロール解決APIを呼ぶクライアント。
	userClient *httpclient.Client
	// salesClient はsalesサービスの集計プロシージャを呼ぶクライアント。
	salesClient *httpclient.Client
	// roleCache はユーザーIDをキーとするロール解決結果のTTLキャッシュ。
	roleCache *ttlcache.Cache[roleInfo]
	// limiter は呼び出し元ごとのトークンバケット。
	limiter *ratelimit.Limiter
	// now は現在時刻の取得関数。テストで固定時刻を注入する。
	now func() time.Time
}

// NewServer は新しいゲートウェイサーバーを生成する。
// 設定はすべて環境変数から読み、欠けていても起動は継続する
// （該当機能は最初の使用時に失敗する）。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/gateway.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}
	serviceToken := os.Getenv("SERVICE_TOKEN")
	if serviceToken == "" {
		log.Println("[Gateway] SERVICE_TOKENが設定されていません。内部サービスへの呼び出しは失敗します")
	}

	userURL := getEnvOr("USER_SERVICE_URL", "http://localhost:8081")
	salesURL := getEnvOr("SALES_SERVICE_URL", "http://localhost:8084")

	router := gin.New()
	router.Use(recoverInternal())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(allowedOrigins))

	s := &Server{
		router:      router,
		port:        port,
		queries:     gatewaydb.New(sqlDB),
		db:          sqlDB,
		jwtSecret:   jwtSecret,
		userClient:  httpclient.NewInternal(userURL, serviceToken),
		salesClient: httpclient.NewInternal(salesURL, serviceToken),
		roleCache:   ttlcache.New[roleInfo](roleCacheTTL),
		limiter:     ratelimit.New(rateLimitBurst, rateLimitInterval),
		now:         time.Now,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ミドルウェアは認証 → 流量制限 → 管理者確認の順に適用され、
// 無効なトークンは流量制限の対象にならない。
func (s *Server) setupRoutes() {
	s.router.HandleMethodNotAllowed = true
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})

	reporting := s.router.Group("/reporting")
	reporting.Use(s.authenticate(), s.rateLimit(), s.requireAdmin())
	{
		reporting.GET("", s.handleCapabilities())
		reporting.GET("/status", s.handleStatus())
		reporting.POST("", s.handleGenerateReport())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// recoverInternal はハンドラー内のpanicを500に変換するミドルウェアを返す。
// 内部の詳細はログにのみ残し、クライアントには安定したエラーコードを返す。
func recoverInternal() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Gateway] panicから復帰しました: %v", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			}
		}()
		c.Next()
	}
}

// getEnvOr は環境変数の値を返し、未設定ならデフォルト値を返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
