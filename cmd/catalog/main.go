// カタログサービスのエントリポイント。
// 商品マスタのCRUDと、他サービス向けのSKU検索APIを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/regi/internal/catalog"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := catalog.NewServer(port)
	if err != nil {
		log.Fatalf("カタログサーバーの初期化に失敗: %v", err)
	}

	log.Printf("カタログサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("カタログサービスの起動に失敗: %v", err)
	}
}
