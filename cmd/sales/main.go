// 売上サービスのエントリポイント。
// チェックアウト処理とレポート用の集計プロシージャを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/regi/internal/sales"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server, err := sales.NewServer(port)
	if err != nil {
		log.Fatalf("売上サーバーの初期化に失敗: %v", err)
	}

	log.Printf("売上サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("売上サービスの起動に失敗: %v", err)
	}
}
