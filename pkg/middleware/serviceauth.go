package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// headerKeyServiceToken はサービス間認証トークンを渡すHTTPヘッダーキー。
const headerKeyServiceToken = "X-Service-Token"

// ServiceAuth はサービス間の内部APIを保護するGinミドルウェアを返す。
// X-Service-Tokenヘッダーが共有トークンと一致しないリクエストを拒否する。
// tokenが空の場合はすべてのリクエストを拒否する（設定漏れの安全側動作）。
func ServiceAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(headerKeyServiceToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "サービス間認証に失敗しました",
			})
			return
		}
		c.Next()
	}
}
