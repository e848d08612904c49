// Package sales は売上サービスの内部実装を提供する。
//
// チェックアウト（カタログからの商品スナップショット取得、在庫引き落とし、
// 売上・明細の記録）と売上の参照を担当する。gatewayのレポート生成が
// 呼び出す3種類の集計プロシージャ（売上上位商品、カテゴリ別売上、
// 売上サマリー）もこのサービスが提供する。
package sales
