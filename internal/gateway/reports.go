package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	gatewaydb "github.com/nao1215/regi/internal/gateway/db"
	"github.com/nao1215/regi/pkg/report"
)

// reportPaths はレポート名とsalesサービスの集計プロシージャのパスの対応。
var reportPaths = map[report.Name]string{
	report.NameTopProducts:     "/internal/reports/top-products",
	report.NameSalesByCategory: "/internal/reports/sales-by-category",
	report.NameSalesSummary:    "/internal/reports/sales-summary",
}

// handleCapabilities はサポートするレポートとパラメータの一覧を返すハンドラーを生成する。
func (s *Server) handleCapabilities() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"reports": []gin.H{
				{
					"name":   report.NameTopProducts,
					"params": []string{"period", "from", "to", "store_id", "limit"},
				},
				{
					"name":   report.NameSalesByCategory,
					"params": []string{"period", "from", "to", "store_id"},
				},
				{
					"name":   report.NameSalesSummary,
					"params": []string{"period", "from", "to", "store_id"},
				},
			},
		})
	}
}

// handleStatus は死活確認用のステータスを返すハンドラーを生成する。
func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"timestamp":         report.FormatTime(s.now()),
			"available_reports": report.Names(),
		})
	}
}

// handleGenerateReport はレポート生成要求を処理するハンドラーを生成する。
// 検証はreport必須 → レポート名 → 日付 → limitの順で行い、最初の
// 違反をエラーコードとして返す。検証を通過した要求は監査ログに
// 非同期で記録され、salesサービスの集計プロシージャに転送される。
func (s *Server) handleGenerateReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		var req report.Request
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}

		if req.Report == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "report_required"})
			return
		}
		if !report.Valid(req.Report) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "report_not_supported"})
			return
		}
		if req.Params.From != "" {
			if _, err := report.ParseDate(req.Params.From); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_from_date"})
				return
			}
		}
		if req.Params.To != "" {
			if _, err := report.ParseDate(req.Params.To); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_to_date"})
				return
			}
		}
		if req.Params.Limit != nil && *req.Params.Limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}

		s.auditReportRequest(getCaller(c), req)

		from, to, err := report.ResolveRange(req.Params, s.now())
		if errors.Is(err, report.ErrInvalidDates) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_dates"})
			return
		}

		rangeParams := report.RangeParams{
			From:    report.FormatTime(from),
			To:      report.FormatTime(to),
			StoreID: req.Params.StoreID,
		}
		if req.Report == report.NameTopProducts {
			limit := report.DefaultTopProductsLimit
			if req.Params.Limit != nil {
				limit = int(*req.Params.Limit)
			}
			if limit > report.MaxTopProductsLimit {
				limit = report.MaxTopProductsLimit
			}
			rangeParams.Limit = limit
		}

		var data json.RawMessage
		if err := s.salesClient.PostJSON(c.Request.Context(), reportPaths[req.Report], rangeParams, &data); err != nil {
			log.Printf("[Gateway] 集計プロシージャの呼び出しに失敗しました: report=%s err=%v", req.Report, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, report.Result{
			Report:      req.Report,
			Params:      req.Params,
			GeneratedAt: report.FormatTime(s.now()),
			Data:        data,
		})
	}
}

// auditReportRequest はレポート要求を監査ログに記録する。
// 書き込みは切り離されたゴルーチンで行い、失敗してもログに残すだけで
// レスポンスには影響させない。
func (s *Server) auditReportRequest(caller CallerIdentity, req report.Request) {
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		paramsJSON = []byte("{}")
	}

	go func() {
		// リクエストのコンテキストとは切り離し、レスポンス送信後も書き込みを継続する
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.queries.InsertReportRequest(ctx, gatewaydb.InsertReportRequestParams{
			ID:          uuid.New().String(),
			RequestedBy: caller.UserID,
			ReportName:  string(req.Report),
			Params:      string(paramsJSON),
			Format:      "json",
		})
		if err != nil {
			log.Printf("[Gateway] 監査ログの書き込みに失敗しました: user=%s report=%s err=%v", caller.UserID, req.Report, err)
		}
	}()
}
