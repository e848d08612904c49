// レポート要求ゲートウェイのエントリポイント。
// 外部からアクセス可能な唯一のサービスで、トークン検証・流量制限・
// 管理者確認を通過したレポート要求をsalesサービスの集計に転送する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/regi/internal/gateway"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("ゲートウェイサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ゲートウェイを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("ゲートウェイの起動に失敗: %v", err)
	}
}
