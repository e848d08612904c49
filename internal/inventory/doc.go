// Package inventory は在庫サービスの内部実装を提供する。
//
// 店舗×SKU単位の在庫レベル管理、入荷・棚卸しによる在庫調整、
// 店舗間移動（pending → completed | cancelled）を担当する。
// 移動は作成時に移動元から引き落とし、受領時に移動先へ加算する。
// salesサービスのチェックアウトが呼び出す一括引き落とし内部APIも提供する。
package inventory
