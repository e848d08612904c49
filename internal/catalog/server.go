package catalog

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	catalogdb "github.com/nao1215/regi/internal/catalog/db"
	"github.com/nao1215/regi/pkg/middleware"
)

// Server は商品カタログサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *catalogdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// serviceToken は内部API保護用のサービス間認証トークン。
	serviceToken string
}

// NewServer は新しいカタログサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/catalog.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	serviceToken := os.Getenv("SERVICE_TOKEN")
	if serviceToken == "" {
		log.Println("SERVICE_TOKENが設定されていません。内部APIはすべて拒否されます")
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		port:         port,
		queries:      catalogdb.New(sqlDB),
		db:           sqlDB,
		serviceToken: serviceToken,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		products := api.Group("/products")
		{
			// 商品一覧取得（categoryクエリで絞り込み可能）
			products.GET("", s.handleList())
			// 商品詳細取得
			products.GET("/:id", s.handleGetByID())
		}

		// 商品の作成・変更は管理者専用
		adminProducts := api.Group("/products")
		adminProducts.Use(middleware.RequireAdmin())
		{
			adminProducts.POST("", s.handleCreate())
			adminProducts.PUT("/:id", s.handleUpdate())
			// 販売実績との整合性を保つため、削除は非アクティブ化として扱う
			adminProducts.DELETE("/:id", s.handleDeactivate())
		}
	}

	// サービス間API: salesサービスがチェックアウト時の商品スナップショットに使用する
	internal := s.router.Group("/internal")
	internal.Use(middleware.ServiceAuth(s.serviceToken))
	{
		internal.GET("/products/sku/:sku", s.handleGetBySku())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "catalog"})
	})
}

// createProductRequest は商品作成リクエストのJSON構造。
type createProductRequest struct {
	// Sku は商品の在庫管理単位コード。
	Sku string `json:"sku" binding:"required"`
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Category は商品カテゴリ。
	Category string `json:"category" binding:"required"`
	// PriceCents は税抜価格（セント/銭単位）。
	PriceCents int64 `json:"price_cents" binding:"required,gt=0"`
}

// updateProductRequest は商品更新リクエストのJSON構造。
type updateProductRequest struct {
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Category は商品カテゴリ。
	Category string `json:"category" binding:"required"`
	// PriceCents は税抜価格（セント/銭単位）。
	PriceCents int64 `json:"price_cents" binding:"required,gt=0"`
	// Active は販売中かどうか。
	Active *bool `json:"active" binding:"required"`
}

// productResponse は商品のJSONレスポンス構造。
type productResponse struct {
	// ID は商品の一意識別子。
	ID string `json:"id"`
	// Sku は在庫管理単位コード。
	Sku string `json:"sku"`
	// Name は商品名。
	Name string `json:"name"`
	// Category は商品カテゴリ。
	Category string `json:"category"`
	// PriceCents は税抜価格（セント/銭単位）。
	PriceCents int64 `json:"price_cents"`
	// Active は販売中かどうか。
	Active bool `json:"active"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toProductResponse はDB行をJSONレスポンスに変換する。
func toProductResponse(p catalogdb.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Sku:        p.Sku,
		Name:       p.Name,
		Category:   p.Category,
		PriceCents: p.PriceCents,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleCreate は商品作成を処理するハンドラを返す。管理者専用。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		productID := uuid.New().String()
		err := s.queries.CreateProduct(c.Request.Context(), catalogdb.CreateProductParams{
			ID:         productID,
			Sku:        req.Sku,
			Name:       req.Name,
			Category:   req.Category,
			PriceCents: req.PriceCents,
		})
		if err != nil {
			// SKUのユニーク制約違反は409として返す
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				c.JSON(http.StatusConflict, gin.H{"error": "このSKUは既に登録されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の作成に失敗しました"})
			log.Printf("商品作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetProductByID(c.Request.Context(), productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toProductResponse(created))
	}
}

// handleList は商品一覧取得を処理するハンドラを返す。
// categoryクエリパラメータでカテゴリ絞り込みができる。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			products []catalogdb.Product
			err      error
		)
		if category := c.Query("category"); category != "" {
			products, err = s.queries.ListProductsByCategory(c.Request.Context(), category)
		} else {
			products, err = s.queries.ListProducts(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品一覧の取得に失敗しました"})
			log.Printf("商品一覧取得エラー: %v", err)
			return
		}

		responses := make([]productResponse, 0, len(products))
		for _, p := range products {
			responses = append(responses, toProductResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetByID は商品詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.queries.GetProductByID(c.Request.Context(), c.Param("id"))
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(p))
	}
}

// handleUpdate は商品更新を処理するハンドラを返す。管理者専用。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")

		if _, err := s.queries.GetProductByID(c.Request.Context(), productID); err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		var req updateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.queries.UpdateProduct(c.Request.Context(), catalogdb.UpdateProductParams{
			Name:       req.Name,
			Category:   req.Category,
			PriceCents: req.PriceCents,
			Active:     *req.Active,
			ID:         productID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の更新に失敗しました"})
			log.Printf("商品更新エラー: %v", err)
			return
		}

		updated, err := s.queries.GetProductByID(c.Request.Context(), productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(updated))
	}
}

// handleDeactivate は商品の非アクティブ化を処理するハンドラを返す。管理者専用。
// 販売実績が商品を参照するため、物理削除は行わない。
func (s *Server) handleDeactivate() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")

		if _, err := s.queries.GetProductByID(c.Request.Context(), productID); err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		if err := s.queries.DeactivateProduct(c.Request.Context(), productID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の非アクティブ化に失敗しました"})
			log.Printf("商品非アクティブ化エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "商品を非アクティブ化しました"})
	}
}

// handleGetBySku はSKUで商品を取得する内部APIハンドラを返す。
// salesサービスがチェックアウト時の商品情報スナップショットに使用する。
func (s *Server) handleGetBySku() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.queries.GetProductBySku(c.Request.Context(), c.Param("sku"))
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(p))
	}
}
