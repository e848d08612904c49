// Package gateway はレポート要求ゲートウェイの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。Bearerトークンの検証（ロール解決は60秒のTTLキャッシュ付き）、
// 呼び出し元ごとのトークンバケットによる流量制限、管理者権限の確認を
// 通過したレポート要求だけを、salesサービスの集計プロシージャに転送する。
// 受け付けた要求は監査ログとして自身のreport_requestsテーブルに
// 非同期で記録する。
package gateway
