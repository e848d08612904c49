// Package report はレポート生成に関する共有型と日付範囲解決を提供する。
//
// gatewayサービス（レポート要求の受付）とsalesサービス（集計プロシージャ）
// の間でやり取りされるレポート名・パラメータ・結果の型を定義する。
package report

import (
	"encoding/json"
	"time"
)

// Name はレポートの種類を表す。
type Name string

const (
	// NameTopProducts は売上上位商品レポートを表す。
	NameTopProducts Name = "top_products"
	// NameSalesByCategory はカテゴリ別売上レポートを表す。
	NameSalesByCategory Name = "sales_by_category"
	// NameSalesSummary は売上サマリーレポートを表す。
	NameSalesSummary Name = "sales_summary"
)

// Names はサポートされているレポート名を定義順に返す。
func Names() []Name {
	return []Name{NameTopProducts, NameSalesByCategory, NameSalesSummary}
}

// Valid はnameがサポートされているレポート名かを判定する。
func Valid(name Name) bool {
	switch name {
	case NameTopProducts, NameSalesByCategory, NameSalesSummary:
		return true
	}
	return false
}

// DefaultTopProductsLimit はtop_productsレポートのデフォルト件数。
const DefaultTopProductsLimit = 3

// MaxTopProductsLimit はtop_productsレポートの最大件数。
const MaxTopProductsLimit = 100

// Params はクライアントから受け取るレポートパラメータ。
// 検証後は変更されず、成功レスポンスには受信した値がそのまま
// エコーバックされる（from/toを再導出しない）。
type Params struct {
	// Period は期間の省略記法。現在は "last_week" のみサポートする。
	Period string `json:"period,omitempty"`
	// From は集計開始日時（ISO-8601文字列）。
	From string `json:"from,omitempty"`
	// To は集計終了日時（ISO-8601文字列）。
	To string `json:"to,omitempty"`
	// StoreID は店舗での絞り込み。空の場合は全店舗が対象。
	StoreID string `json:"store_id,omitempty"`
	// Limit はtop_productsの件数上限。JSONの数値として検証するためfloat64で受ける。
	Limit *float64 `json:"limit,omitempty"`
}

// Request はレポート生成要求のJSON構造。
type Request struct {
	// Report は生成するレポートの名前。
	Report Name `json:"report"`
	// Params はレポートパラメータ。
	Params Params `json:"params"`
}

// Result はレポート生成の成功レスポンス。
type Result struct {
	// Report は生成したレポートの名前。
	Report Name `json:"report"`
	// Params は要求時のパラメータのエコーバック。
	Params Params `json:"params"`
	// GeneratedAt は生成日時（ISO-8601文字列）。
	GeneratedAt string `json:"generated_at"`
	// Data は集計プロシージャが返したペイロード。gatewayでは不透明に扱う。
	Data json.RawMessage `json:"data"`
}

// RangeParams は集計プロシージャに渡す正規化済みパラメータ。
type RangeParams struct {
	// From は正規化された集計開始日時（ISO-8601文字列）。
	From string `json:"from"`
	// To は正規化された集計終了日時（ISO-8601文字列）。
	To string `json:"to"`
	// StoreID は店舗での絞り込み。空の場合は全店舗が対象。
	StoreID string `json:"store_id,omitempty"`
	// Limit はtop_productsの件数上限。他のレポートでは0。
	Limit int `json:"limit,omitempty"`
}

// TimeFormat はレポートで使用するISO-8601（ミリ秒精度・UTC）の時刻フォーマット。
const TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTime は時刻をレポート用のISO-8601文字列（UTC）に変換する。
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
