package catalog

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	catalogdb "github.com/nao1215/regi/internal/catalog/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServiceToken はテスト用のサービス間認証トークン。
const testServiceToken = "test-service-token"

// setupTestServer はテスト用のカタログサーバーをインメモリSQLiteで構築する。
// JWTミドルウェアの代わりにX-User-ID/X-Is-Adminヘッダーを読むテスト用ミドルウェアを使用する。
func setupTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:       router,
		port:         "0",
		queries:      catalogdb.New(sqlDB),
		db:           sqlDB,
		serviceToken: testServiceToken,
	}

	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Set("is_admin", c.GetHeader("X-Is-Admin") == "true")
		c.Next()
	})
	{
		products := api.Group("/products")
		{
			products.GET("", s.handleList())
			products.GET("/:id", s.handleGetByID())
		}
		adminProducts := api.Group("/products")
		adminProducts.Use(func(c *gin.Context) {
			if c.GetHeader("X-Is-Admin") != "true" {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "管理者権限が必要です"})
				return
			}
			c.Next()
		})
		{
			adminProducts.POST("", s.handleCreate())
			adminProducts.PUT("/:id", s.handleUpdate())
			adminProducts.DELETE("/:id", s.handleDeactivate())
		}
	}

	internal := router.Group("/internal")
	internal.Use(func(c *gin.Context) {
		if c.GetHeader("X-Service-Token") != testServiceToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "サービス間認証に失敗しました"})
			return
		}
		c.Next()
	})
	{
		internal.GET("/products/sku/:sku", s.handleGetBySku())
	}

	return s, router
}

// createTestProduct はテスト用に商品をDBに直接挿入するヘルパー関数。
func createTestProduct(t *testing.T, s *Server, sku, name, category string, priceCents int64) string {
	t.Helper()

	id := uuid.New().String()
	err := s.queries.CreateProduct(t.Context(), catalogdb.CreateProductParams{
		ID:         id,
		Sku:        sku,
		Name:       name,
		Category:   category,
		PriceCents: priceCents,
	})
	if err != nil {
		t.Fatalf("テスト用商品の作成に失敗: %v", err)
	}
	return id
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path string, admin bool, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "test-user")
	if admin {
		req.Header.Set("X-Is-Admin", "true")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHandleCreate は商品作成を検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("管理者が商品を作成できること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/products", true, map[string]any{
			"sku":         "COFFEE-001",
			"name":        "ブレンドコーヒー豆 200g",
			"category":    "beverage",
			"price_cents": 98000,
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		var resp productResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Sku != "COFFEE-001" {
			t.Errorf("Sku = %q, want %q", resp.Sku, "COFFEE-001")
		}
		if !resp.Active {
			t.Error("新規作成した商品がアクティブではない")
		}
	})

	t.Run("重複したSKUは409で拒否されること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		createTestProduct(t, s, "DUP-001", "既存商品", "misc", 100)

		w := doRequest(router, http.MethodPost, "/api/v1/products", true, map[string]any{
			"sku":         "DUP-001",
			"name":        "重複商品",
			"category":    "misc",
			"price_cents": 200,
		})

		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("非管理者による作成は403で拒否されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/products", false, map[string]any{
			"sku":         "STAFF-001",
			"name":        "スタッフ商品",
			"category":    "misc",
			"price_cents": 100,
		})

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("価格が0以下の場合は400で拒否されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/products", true, map[string]any{
			"sku":         "FREE-001",
			"name":        "無料商品",
			"category":    "misc",
			"price_cents": 0,
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleList は商品一覧取得を検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	t.Run("全商品が取得できること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		createTestProduct(t, s, "A-001", "商品A", "food", 100)
		createTestProduct(t, s, "B-001", "商品B", "beverage", 200)

		w := doRequest(router, http.MethodGet, "/api/v1/products", false, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var resp []productResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp) != 2 {
			t.Errorf("商品数 = %d, want 2", len(resp))
		}
	})

	t.Run("カテゴリで絞り込めること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		createTestProduct(t, s, "A-001", "商品A", "food", 100)
		createTestProduct(t, s, "B-001", "商品B", "beverage", 200)

		w := doRequest(router, http.MethodGet, "/api/v1/products?category=beverage", false, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var resp []productResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp) != 1 {
			t.Fatalf("商品数 = %d, want 1", len(resp))
		}
		if resp[0].Category != "beverage" {
			t.Errorf("Category = %q, want %q", resp[0].Category, "beverage")
		}
	})
}

// TestHandleUpdate は商品更新を検証する。
func TestHandleUpdate(t *testing.T) {
	t.Parallel()

	t.Run("管理者が商品を更新できること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		id := createTestProduct(t, s, "UPD-001", "旧商品名", "food", 100)

		w := doRequest(router, http.MethodPut, "/api/v1/products/"+id, true, map[string]any{
			"name":        "新商品名",
			"category":    "beverage",
			"price_cents": 300,
			"active":      false,
		})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp productResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Name != "新商品名" {
			t.Errorf("Name = %q, want %q", resp.Name, "新商品名")
		}
		if resp.Active {
			t.Error("activeがfalseに更新されていない")
		}
	})

	t.Run("存在しない商品の更新は404を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPut, "/api/v1/products/nonexistent", true, map[string]any{
			"name":        "名前",
			"category":    "misc",
			"price_cents": 100,
			"active":      true,
		})

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleDeactivate は商品の非アクティブ化を検証する。
func TestHandleDeactivate(t *testing.T) {
	t.Parallel()

	t.Run("DELETEで商品が非アクティブ化されること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		id := createTestProduct(t, s, "DEL-001", "削除対象", "misc", 100)

		w := doRequest(router, http.MethodDelete, "/api/v1/products/"+id, true, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		// 物理削除ではなく非アクティブ化であること
		p, err := s.queries.GetProductByID(t.Context(), id)
		if err != nil {
			t.Fatalf("非アクティブ化後の商品取得に失敗: %v", err)
		}
		if p.Active {
			t.Error("商品がまだアクティブ")
		}
	})
}

// TestHandleGetBySku は内部SKU検索APIを検証する。
func TestHandleGetBySku(t *testing.T) {
	t.Parallel()

	t.Run("サービストークン付きでSKU検索できること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		createTestProduct(t, s, "SKU-001", "検索対象", "food", 500)

		req := httptest.NewRequest(http.MethodGet, "/internal/products/sku/SKU-001", nil)
		req.Header.Set("X-Service-Token", testServiceToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp productResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Name != "検索対象" {
			t.Errorf("Name = %q, want %q", resp.Name, "検索対象")
		}
	})

	t.Run("サービストークンがない場合は401で拒否されること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		createTestProduct(t, s, "SKU-002", "検索対象2", "food", 500)

		req := httptest.NewRequest(http.MethodGet, "/internal/products/sku/SKU-002", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("存在しないSKUは404を返すこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/internal/products/sku/NONE", nil)
		req.Header.Set("X-Service-Token", testServiceToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
