// ユーザーサービスのエントリポイント。
// ユーザー登録・ログイン（JWT発行）・ロール管理を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/regi/internal/user"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := user.NewServer(port)
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("ユーザーサービスの起動に失敗: %v", err)
	}
}
