// Package user はユーザー・ロール管理サービスの内部実装を提供する。
//
// ユーザー登録、ログイン（JWT発行）、管理者によるロール変更を担当する。
// gatewayサービスのトークン検証がロール解決のフォールバックとして参照する
// 内部APIも提供する。
package user
