// Package catalog は商品カタログサービスの内部実装を提供する。
//
// 商品マスタ（SKU、名前、カテゴリ、価格）のCRUDを担当する。
// 削除は物理削除ではなく非アクティブ化として扱い、売上履歴との
// 整合性を保つ。salesサービスがチェックアウト時に商品情報を
// スナップショットするための内部SKU検索APIも提供する。
package catalog
