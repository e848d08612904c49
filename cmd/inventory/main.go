// 在庫サービスのエントリポイント。
// 店舗×SKUの在庫レベル、在庫調整、店舗間移動を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/regi/internal/inventory"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := inventory.NewServer(port)
	if err != nil {
		log.Fatalf("在庫サーバーの初期化に失敗: %v", err)
	}

	log.Printf("在庫サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("在庫サービスの起動に失敗: %v", err)
	}
}
