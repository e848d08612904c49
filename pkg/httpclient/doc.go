// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// gatewayからの集計プロシージャ呼び出し、salesからの在庫引当など、
// サービス間の通信パターンを統一する。内部APIにはサービストークンを付与する。
package httpclient
