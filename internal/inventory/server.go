package inventory

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

	inventorydb "github.com/nao1215/regi/internal/inventory/db"
	"github.com/nao1215/regi/pkg/middleware"
)

// 移動伝票のステータス。pendingからcompletedまたはcancelledに遷移する。
const (
	transferStatusPending   = "pending"
	transferStatusCompleted = "completed"
	transferStatusCancelled = "cancelled"
)

// Server は在庫サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *inventorydb.Queries
	// db はSQLiteデータベース接続。トランザクション開始に使用する。
	db *sql.DB
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// serviceToken は内部API保護用のサービス間認証トークン。
	serviceToken string
}

// NewServer は新しい在庫サーバーを生成する。
// マイグレーションを適用して在庫スキーマを初期化する。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/inventory.db?_journal_mode=WAL&_busy_timeout=5000")
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

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		port:         port,
		queries:      inventorydb.New(sqlDB),
		db:           sqlDB,
		jwtSecret:    jwtSecret,
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
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		api.GET("/stock/:store_id", s.handleListStock())
		api.GET("/stock/:store_id/:sku", s.handleGetStock())
		api.GET("/transfers", s.handleListTransfers())
		api.GET("/transfers/:id", s.handleGetTransfer())

		// 管理者専用: 在庫調整と店舗間移動
		admin := api.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/stock/adjust", s.handleAdjustStock())
			admin.POST("/transfers", s.handleCreateTransfer())
			admin.POST("/transfers/:id/receive", s.handleReceiveTransfer())
			admin.POST("/transfers/:id/cancel", s.handleCancelTransfer())
		}
	}

	// サービス間API: salesサービスのチェックアウトが在庫を引き落とす
	internal := s.router.Group("/internal")
	internal.Use(middleware.ServiceAuth(s.serviceToken))
	{
		internal.POST("/stock/deduct", s.handleDeductStock())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "inventory"})
	})
}

// stockResponse は在庫レベルのJSONレスポンス構造。
type stockResponse struct {
	StoreID   string `json:"store_id"`
	Sku       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	UpdatedAt string `json:"updated_at"`
}

func toStockResponse(sl inventorydb.StockLevel) stockResponse {
	return stockResponse{
		StoreID:   sl.StoreID,
		Sku:       sl.Sku,
		Quantity:  sl.Quantity,
		UpdatedAt: sl.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// transferResponse は移動伝票のJSONレスポンス構造。
type transferResponse struct {
	ID          string `json:"id"`
	FromStoreID string `json:"from_store_id"`
	ToStoreID   string `json:"to_store_id"`
	Sku         string `json:"sku"`
	Quantity    int64  `json:"quantity"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTransferResponse(t inventorydb.Transfer) transferResponse {
	return transferResponse{
		ID:          t.ID,
		FromStoreID: t.FromStoreID,
		ToStoreID:   t.ToStoreID,
		Sku:         t.Sku,
		Quantity:    t.Quantity,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleListStock は指定店舗の在庫一覧を返すハンドラーを生成する。
func (s *Server) handleListStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		levels, err := s.queries.ListStockByStore(c.Request.Context(), c.Param("store_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫一覧の取得に失敗しました"})
			return
		}

		responses := make([]stockResponse, 0, len(levels))
		for _, sl := range levels {
			responses = append(responses, toStockResponse(sl))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetStock は単一SKUの在庫レベルを返すハンドラーを生成する。
// 在庫レコードが存在しないSKUは数量0として扱う。
func (s *Server) handleGetStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID := c.Param("store_id")
		sku := c.Param("sku")

		sl, err := s.queries.GetStockLevel(c.Request.Context(), inventorydb.GetStockLevelParams{
			StoreID: storeID,
			Sku:     sku,
		})
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusOK, stockResponse{StoreID: storeID, Sku: sku, Quantity: 0})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, toStockResponse(sl))
	}
}

// adjustStockRequest は在庫調整リクエスト。deltaは正負どちらも指定できる。
type adjustStockRequest struct {
	StoreID string `json:"store_id" binding:"required"`
	Sku     string `json:"sku" binding:"required"`
	Delta   int64  `json:"delta" binding:"required"`
}

// handleAdjustStock は入荷・棚卸しによる在庫調整ハンドラーを生成する。
// 減算によって在庫が負になる調整は409で拒否する。
func (s *Server) handleAdjustStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adjustStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエスト形式が不正です"})
			return
		}

		ctx := c.Request.Context()

		if req.Delta >= 0 {
			err := s.queries.AddStock(ctx, inventorydb.AddStockParams{
				StoreID:  req.StoreID,
				Sku:      req.Sku,
				Quantity: req.Delta,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫調整に失敗しました"})
				return
			}
		} else {
			affected, err := s.queries.DeductStock(ctx, inventorydb.DeductStockParams{
				Quantity: -req.Delta,
				StoreID:  req.StoreID,
				Sku:      req.Sku,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫調整に失敗しました"})
				return
			}
			if affected == 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "在庫が不足しています", "sku": req.Sku})
				return
			}
		}

		sl, err := s.queries.GetStockLevel(ctx, inventorydb.GetStockLevelParams{
			StoreID: req.StoreID,
			Sku:     req.Sku,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "調整後の在庫取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, toStockResponse(sl))
	}
}

// createTransferRequest は店舗間移動の作成リクエスト。
type createTransferRequest struct {
	FromStoreID string `json:"from_store_id" binding:"required"`
	ToStoreID   string `json:"to_store_id" binding:"required"`
	Sku         string `json:"sku" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required"`
}

// handleCreateTransfer は店舗間移動の作成ハンドラーを生成する。
// 移動元の在庫を作成時点で引き落とし、輸送中の二重販売を防ぐ。
func (s *Server) handleCreateTransfer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTransferRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエスト形式が不正です"})
			return
		}
		if req.FromStoreID == req.ToStoreID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "移動元と移動先が同じ店舗です"})
			return
		}

		ctx := c.Request.Context()
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクション開始に失敗しました"})
			return
		}
		defer tx.Rollback() //nolint:errcheck

		qtx := s.queries.WithTx(tx)

		affected, err := qtx.DeductStock(ctx, inventorydb.DeductStockParams{
			Quantity: req.Quantity,
			StoreID:  req.FromStoreID,
			Sku:      req.Sku,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "移動元在庫の引き落としに失敗しました"})
			return
		}
		if affected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "移動元の在庫が不足しています", "sku": req.Sku})
			return
		}

		id := uuid.New().String()
		err = qtx.CreateTransfer(ctx, inventorydb.CreateTransferParams{
			ID:          id,
			FromStoreID: req.FromStoreID,
			ToStoreID:   req.ToStoreID,
			Sku:         req.Sku,
			Quantity:    req.Quantity,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "移動伝票の作成に失敗しました"})
			return
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクションのコミットに失敗しました"})
			return
		}

		t, err := s.queries.GetTransfer(ctx, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した移動伝票の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusCreated, toTransferResponse(t))
	}
}

// handleReceiveTransfer は移動伝票の受領ハンドラーを生成する。
// pendingの伝票のみ受領でき、移動先の在庫に数量を加算してcompletedにする。
func (s *Server) handleReceiveTransfer() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.finishTransfer(c, transferStatusCompleted)
	}
}

// handleCancelTransfer は移動伝票の取り消しハンドラーを生成する。
// pendingの伝票のみ取り消せ、移動元の在庫に数量を戻してcancelledにする。
func (s *Server) handleCancelTransfer() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.finishTransfer(c, transferStatusCancelled)
	}
}

// finishTransfer はpendingの移動伝票をトランザクション内で終端状態に遷移させる。
// completedなら移動先へ、cancelledなら移動元へ数量を加算する。
func (s *Server) finishTransfer(c *gin.Context, status string) {
	ctx := c.Request.Context()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクション開始に失敗しました"})
		return
	}
	defer tx.Rollback() //nolint:errcheck

	qtx := s.queries.WithTx(tx)

	t, err := qtx.GetTransfer(ctx, c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "移動伝票が見つかりません"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "移動伝票の取得に失敗しました"})
		return
	}
	if t.Status != transferStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "移動伝票はすでに処理済みです", "status": t.Status})
		return
	}

	creditStore := t.ToStoreID
	if status == transferStatusCancelled {
		creditStore = t.FromStoreID
	}
	err = qtx.AddStock(ctx, inventorydb.AddStockParams{
		StoreID:  creditStore,
		Sku:      t.Sku,
		Quantity: t.Quantity,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫の加算に失敗しました"})
		return
	}

	err = qtx.UpdateTransferStatus(ctx, inventorydb.UpdateTransferStatusParams{
		Status: status,
		ID:     t.ID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "移動伝票の更新に失敗しました"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクションのコミットに失敗しました"})
		return
	}

	t.Status = status
	c.JSON(http.StatusOK, toTransferResponse(t))
}

// handleListTransfers は移動伝票の一覧を返すハンドラーを生成する。
func (s *Server) handleListTransfers() gin.HandlerFunc {
	return func(c *gin.Context) {
		transfers, err := s.queries.ListTransfers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "移動伝票一覧の取得に失敗しました"})
			return
		}

		responses := make([]transferResponse, 0, len(transfers))
		for _, t := range transfers {
			responses = append(responses, toTransferResponse(t))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetTransfer は単一の移動伝票を返すハンドラーを生成する。
func (s *Server) handleGetTransfer() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := s.queries.GetTransfer(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "移動伝票が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "移動伝票の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, toTransferResponse(t))
	}
}

// deductItem は在庫引き落としの1明細。
type deductItem struct {
	Sku      string `json:"sku" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// deductStockRequest はチェックアウト時の在庫引き落としリクエスト。
type deductStockRequest struct {
	StoreID string       `json:"store_id" binding:"required"`
	Items   []deductItem `json:"items" binding:"required,min=1"`
}

// handleDeductStock はsalesサービス向けの在庫一括引き落としハンドラーを生成する。
// 全明細を単一トランザクションで処理し、1つでも在庫不足なら全体を409で失敗させる。
func (s *Server) handleDeductStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deductStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエスト形式が不正です"})
			return
		}

		ctx := c.Request.Context()
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクション開始に失敗しました"})
			return
		}
		defer tx.Rollback() //nolint:errcheck

		qtx := s.queries.WithTx(tx)

		for _, item := range req.Items {
			if item.Quantity <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "数量は1以上で指定してください", "sku": item.Sku})
				return
			}

			affected, err := qtx.DeductStock(ctx, inventorydb.DeductStockParams{
				Quantity: item.Quantity,
				StoreID:  req.StoreID,
				Sku:      item.Sku,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "在庫の引き落としに失敗しました"})
				return
			}
			if affected == 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "insufficient_stock", "sku": item.Sku})
				return
			}
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トランザクションのコミットに失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"deducted": len(req.Items)})
	}
}
