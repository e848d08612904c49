package sales

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	salesdb "github.com/nao1215/regi/internal/sales/db"
	"github.com/nao1215/regi/pkg/httpclient"
	"github.com/nao1215/regi/pkg/middleware"
	"github.com/nao1215/regi/pkg/report"
)

// defaultListLimit は売上一覧のデフォルト取得件数。
const defaultListLimit = 50

// Server は売上サービスのHTTPサーバー。
// チェックアウト処理と、gatewayから呼ばれる集計プロシージャを提供する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *salesdb.Queries
	// db はSQLiteデータベース接続。トランザクション開始に使用する。
	db *sql.DB
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// serviceToken は内部API保護用のサービス間認証トークン。
	serviceToken string
	// catalogClient はカタログサービスのSKU検索を呼ぶクライアント。
	catalogClient *httpclient.Client
	// inventoryClient は在庫サービスの引き落としを呼ぶクライアント。
	inventoryClient *httpclient.Client
}

// NewServer は新しい売上サーバーを生成する。
// SQLiteデータベースの初期化と下流サービスクライアントの構築を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/sales.db?_journal_mode=WAL&_busy_timeout=5000")
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
		log.Println("SERVICE_TOKENが設定されていません。内部APIはすべて拒否されます")
	}

	catalogURL := os.Getenv("CATALOG_SERVICE_URL")
	if catalogURL == "" {
		catalogURL = "http://localhost:8082"
	}
	inventoryURL := os.Getenv("INVENTORY_SERVICE_URL")
	if inventoryURL == "" {
		inventoryURL = "http://localhost:8083"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:          router,
		port:            port,
		queries:         salesdb.New(sqlDB),
		db:              sqlDB,
		jwtSecret:       jwtSecret,
		serviceToken:    serviceToken,
		catalogClient:   httpclient.NewInternal(catalogURL, serviceToken),
		inventoryClient: httpclient.NewInternal(inventoryURL, serviceToken),
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
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		api.POST("/sales", s.handleCheckout())
		api.GET("/sales", s.handleListSales())
		api.GET("/sales/:id", s.handleGetSale())
	}

	// サービス間API: gatewayのレポート生成が呼び出す集計プロシージャ
	internal := s.router.Group("/internal")
	internal.Use(middleware.ServiceAuth(s.serviceToken))
	{
		internal.POST("/reports/top-products", s.handleTopProducts())
		internal.POST("/reports/sales-by-category", s.handleSalesByCategory())
		internal.POST("/reports/sales-summary", s.handleSalesSummary())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sales"})
	})
}

// productInfo はカタログサービスのSKU検索レスポンス。
type productInfo struct {
	ID         string `json:"id"`
	Sku        string `json:"sku"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Active     bool   `json:"active"`
}

// checkoutItem はチェックアウトの1明細。
type checkoutItem struct {
	Sku      string `json:"sku" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// checkoutRequest はチェックアウトリクエスト。
type checkoutRequest struct {
	StoreID string         `json:"store_id" binding:"required"`
	Items   []checkoutItem `json:"items" binding:"required,min=1"`
}

// saleItemResponse は売上明細のJSONレスポンス構造。
type saleItemResponse struct {
	Sku            string `json:"sku"`
	ProductName    string `json:"product_name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int64  `json:"quantity"`
}

// saleResponse は売上のJSONレスポンス構造。
type saleResponse struct {
	ID         string             `json:"id"`
	StoreID    string             `json:"store_id"`
	CashierID  string             `json:"cashier_id"`
	TotalCents int64              `json:"total_cents"`
	CreatedAt  string             `json:"created_at"`
	Items      []saleItemResponse `json:"items,omitempty"`
}

// handleCheckout はチェックアウト処理のハンドラーを生成する。
// カタログから商品情報をスナップショットし、在庫を引き落としてから
// 売上と明細を単一トランザクションで記録する。
func (s *Server) handleCheckout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエスト形式が不正です"})
			return
		}
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "数量は1以上で指定してください", "sku": item.Sku})
				return
			}
		}

		cashierID := middleware.GetUserID(c)
		if cashierID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証情報が見つかりません"})
			return
		}

		ctx := httpclient.WithUserID(c.Request.Context(), cashierID)

		// カタログから販売時点の商品情報をスナップショットする
		products := make([]productInfo, 0, len(req.Items))
		for _, item := range req.Items {
			var p productInfo
			err := s.catalogClient.GetJSON(ctx, "/internal/products/sku/"+item.Sku, &p)
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				c.JSON(http.StatusBadRequest, gin.H{"error": "商品が見つかりません", "sku": item.Sku})
				return
			}
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "カタログサービスへの問い合わせに失敗しました"})
				return
			}
			if !p.Active {
				c.JSON(http.StatusBadRequest, gin.H{"error": "販売停止中の商品です", "sku": item.Sku})
				return
			}
			products = append(products, p)
		}

		// 在庫を一括で引き落とす。不足があれば全体が失敗する
		deductItems := make([]gin.H, 0, len(req.Items))
		for _, item := range req.Items {
			deductItems = append(deductItems, gin.H{"sku": item.Sku, "quantity": item.Quantity})
		}
		err := s.inventoryClient.PostJSON(ctx, "/internal/stock/deduct", gin.H{
			"store_id": req.StoreID,
			"items":    deductItems,
		}, nil)
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient_stock"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "在庫サービスへの問い合わせに失敗しました"})
			return
		}

		var totalCents int64
		for i, item := range req.Items {
			totalCents += products[i].PriceCents * item.Quantity
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクション開始に失敗しました"})
			return
		}
		defer tx.Rollback() //nolint:errcheck

		qtx := s.queries.WithTx(tx)

		saleID := uuid.New().String()
		err = qtx.CreateSale(ctx, salesdb.CreateSaleParams{
			ID:         saleID,
			StoreID:    req.StoreID,
			CashierID:  cashierID,
			TotalCents: totalCents,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "売上の記録に失敗しました"})
			return
		}

		itemResponses := make([]saleItemResponse, 0, len(req.Items))
		for i, item := range req.Items {
			p := products[i]
			err = qtx.CreateSaleItem(ctx, salesdb.CreateSaleItemParams{
				ID:             uuid.New().String(),
				SaleID:         saleID,
				Sku:            p.Sku,
				ProductName:    p.Name,
				Category:       p.Category,
				UnitPriceCents: p.PriceCents,
				Quantity:       item.Quantity,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "売上明細の記録に失敗しました"})
				return
			}
			itemResponses = append(itemResponses, saleItemResponse{
				Sku:            p.Sku,
				ProductName:    p.Name,
				Category:       p.Category,
				UnitPriceCents: p.PriceCents,
				Quantity:       item.Quantity,
			})
		}

		if err := tx.Commit(); err != nil {
			// 在庫はすでに引き落とし済み。棚卸しでの補正が必要になるため記録を残す
			log.Printf("[Sales] 売上記録のコミットに失敗しました: store=%s cashier=%s err=%v", req.StoreID, cashierID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "売上の記録に失敗しました"})
			return
		}

		sale, err := s.queries.GetSale(ctx, saleID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記録した売上の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusCreated, saleResponse{
			ID:         sale.ID,
			StoreID:    sale.StoreID,
			CashierID:  sale.CashierID,
			TotalCents: sale.TotalCents,
			CreatedAt:  sale.CreatedAt.UTC().Format(time.RFC3339),
			Items:      itemResponses,
		})
	}
}

// handleListSales は売上一覧を返すハンドラーを生成する。
// store_idクエリパラメータで店舗を絞り込める。
func (s *Server) handleListSales() gin.HandlerFunc {
	return func(c *gin.Context) {
		sales, err := s.queries.ListSales(c.Request.Context(), salesdb.ListSalesParams{
			StoreID: c.Query("store_id"),
			Limit:   defaultListLimit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "売上一覧の取得に失敗しました"})
			return
		}

		responses := make([]saleResponse, 0, len(sales))
		for _, sale := range sales {
			responses = append(responses, saleResponse{
				ID:         sale.ID,
				StoreID:    sale.StoreID,
				CashierID:  sale.CashierID,
				TotalCents: sale.TotalCents,
				CreatedAt:  sale.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetSale は明細付きの売上詳細を返すハンドラーを生成する。
func (s *Server) handleGetSale() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sale, err := s.queries.GetSale(ctx, c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "売上が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "売上の取得に失敗しました"})
			return
		}

		items, err := s.queries.ListSaleItems(ctx, sale.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "売上明細の取得に失敗しました"})
			return
		}

		itemResponses := make([]saleItemResponse, 0, len(items))
		for _, item := range items {
			itemResponses = append(itemResponses, saleItemResponse{
				Sku:            item.Sku,
				ProductName:    item.ProductName,
				Category:       item.Category,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
			})
		}

		c.JSON(http.StatusOK, saleResponse{
			ID:         sale.ID,
			StoreID:    sale.StoreID,
			CashierID:  sale.CashierID,
			TotalCents: sale.TotalCents,
			CreatedAt:  sale.CreatedAt.UTC().Format(time.RFC3339),
			Items:      itemResponses,
		})
	}
}

// bindRangeParams は集計プロシージャの共通パラメータを検証して取り出す。
func bindRangeParams(c *gin.Context) (report.RangeParams, bool) {
	var params report.RangeParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエスト形式が不正です"})
		return report.RangeParams{}, false
	}
	if params.From == "" || params.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fromとtoは必須です"})
		return report.RangeParams{}, false
	}
	return params, true
}

// handleTopProducts は売上上位商品の集計プロシージャを生成する。
func (s *Server) handleTopProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		params, ok := bindRangeParams(c)
		if !ok {
			return
		}

		limit := params.Limit
		if limit <= 0 {
			limit = report.DefaultTopProductsLimit
		}

		rows, err := s.queries.TopProducts(c.Request.Context(), salesdb.TopProductsParams{
			From:    params.From,
			To:      params.To,
			StoreID: params.StoreID,
			Limit:   int64(limit),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計クエリの実行に失敗しました"})
			return
		}

		items := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			items = append(items, gin.H{
				"sku":           row.Sku,
				"product_name":  row.ProductName,
				"units_sold":    row.UnitsSold,
				"revenue_cents": row.RevenueCents,
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// handleSalesByCategory はカテゴリ別売上の集計プロシージャを生成する。
func (s *Server) handleSalesByCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		params, ok := bindRangeParams(c)
		if !ok {
			return
		}

		rows, err := s.queries.SalesByCategory(c.Request.Context(), salesdb.SalesByCategoryParams{
			From:    params.From,
			To:      params.To,
			StoreID: params.StoreID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計クエリの実行に失敗しました"})
			return
		}

		items := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			items = append(items, gin.H{
				"category":      row.Category,
				"units_sold":    row.UnitsSold,
				"revenue_cents": row.RevenueCents,
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// handleSalesSummary は売上サマリーの集計プロシージャを生成する。
func (s *Server) handleSalesSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		params, ok := bindRangeParams(c)
		if !ok {
			return
		}

		row, err := s.queries.SalesSummary(c.Request.Context(), salesdb.SalesSummaryParams{
			From:    params.From,
			To:      params.To,
			StoreID: params.StoreID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計クエリの実行に失敗しました"})
			return
		}

		var avgSaleCents int64
		if row.SaleCount > 0 {
			avgSaleCents = row.RevenueCents / row.SaleCount
		}
		c.JSON(http.StatusOK, gin.H{
			"sale_count":     row.SaleCount,
			"units_sold":     row.UnitsSold,
			"revenue_cents":  row.RevenueCents,
			"avg_sale_cents": avgSaleCents,
		})
	}
}
