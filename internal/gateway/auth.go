package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/regi/pkg/middleware"
)

// CallerIdentity は検証済みの呼び出し元を表す。
type CallerIdentity struct {
	// UserID は呼び出し元ユーザーの一意識別子。流量制限のキーにもなる。
	UserID string
	// Email はユーザーのメールアドレス。
	Email string
	// Role は解決済みのロール（admin / manager / staff）。
	Role string
	// IsAdmin は管理者権限を持つかどうか。
	IsAdmin bool
}

// roleInfo はロールキャッシュに格納する解決結果。
type roleInfo struct {
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

// 認証失敗の詳細理由。ログにのみ出力し、クライアントには
// missing_token / invalid_token のどちらかだけを返す。
const (
	reasonHeaderMissing      = "authorization_header_missing"
	reasonBearerPrefix       = "bearer_prefix_missing"
	reasonEmptyToken         = "empty_token"
	reasonTokenExpired       = "token_expired"
	reasonTokenMalformed     = "token_malformed"
	reasonBackendUnreachable = "role_backend_unreachable"
)

// AuthError は認証失敗を表す。クライアントに返す安定したエラーコードと、
// ログ用の詳細な失敗理由を分けて保持する。
type AuthError struct {
	// Code はクライアントに返すエラーコード。
	Code string
	// Reason はログに記録する詳細な失敗理由。
	Reason string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *AuthError) Error() string {
	return fmt.Sprintf("認証に失敗: code=%s reason=%s", e.Code, e.Reason)
}

// Unwrap は原因となったエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// validateToken はAuthorizationヘッダーを検証し、呼び出し元の識別情報を返す。
// トークン自体の検証はローカルで行い、ロールはトークンのクレーム、
// なければuserサービスへの問い合わせで解決する。解決結果は
// ユーザーIDをキーに60秒キャッシュされる。
func (s *Server) validateToken(ctx context.Context, authHeader string) (CallerIdentity, *AuthError) {
	if authHeader == "" {
		return CallerIdentity{}, &AuthError{Code: "missing_token", Reason: reasonHeaderMissing}
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return CallerIdentity{}, &AuthError{Code: "missing_token", Reason: reasonBearerPrefix}
	}
	if strings.TrimSpace(tokenString) == "" {
		return CallerIdentity{}, &AuthError{Code: "missing_token", Reason: reasonEmptyToken}
	}

	claims, err := middleware.ParseJWT(s.jwtSecret, tokenString)
	if err != nil {
		reason := reasonTokenMalformed
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = reasonTokenExpired
		}
		return CallerIdentity{}, &AuthError{Code: "invalid_token", Reason: reason, Err: err}
	}

	info, err := s.resolveRole(ctx, claims)
	if err != nil {
		return CallerIdentity{}, &AuthError{Code: "invalid_token", Reason: reasonBackendUnreachable, Err: err}
	}

	return CallerIdentity{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Role:    info.Role,
		IsAdmin: info.IsAdmin,
	}, nil
}

// resolveRole は呼び出し元のロールを解決する。
// キャッシュ → トークンのクレーム → userサービスの順で参照し、
// 解決結果を60秒キャッシュする。
func (s *Server) resolveRole(ctx context.Context, claims *middleware.JWTClaims) (roleInfo, error) {
	if info, ok := s.roleCache.Get(claims.UserID); ok {
		return info, nil
	}

	var info roleInfo
	if claims.Role != "" {
		info = roleInfo{Role: claims.Role, IsAdmin: claims.IsAdmin}
	} else {
		// ロール解決前に発行されたトークン。userサービスに問い合わせる
		if err := s.userClient.GetJSON(ctx, "/internal/users/"+claims.UserID+"/role", &info); err != nil {
			return roleInfo{}, fmt.Errorf("ロールの解決に失敗: %w", err)
		}
	}

	s.roleCache.Set(claims.UserID, info)
	return info, nil
}

// contextKeyCaller はGinコンテキストに呼び出し元識別情報を格納するキー。
const contextKeyCaller = "caller"

// authenticate はBearerトークンを検証するミドルウェアを返す。
// 失敗理由はログに残し、クライアントには一律401を返す。
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, authErr := s.validateToken(c.Request.Context(), c.GetHeader("Authorization"))
		if authErr != nil {
			log.Printf("[Gateway] 認証に失敗しました: reason=%s err=%v", authErr.Reason, authErr.Err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Code})
			return
		}

		c.Set(contextKeyCaller, identity)
		c.Next()
	}
}

// rateLimit は呼び出し元ごとの流量制限ミドルウェアを返す。
// authenticateが事前に適用されている必要がある。
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := getCaller(c)
		if !s.limiter.Allow(caller.UserID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}

// requireAdmin は管理者権限を要求するミドルウェアを返す。
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !getCaller(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// getCaller はGinコンテキストから呼び出し元識別情報を取得する。
func getCaller(c *gin.Context) CallerIdentity {
	v, _ := c.Get(contextKeyCaller)
	if caller, ok := v.(CallerIdentity); ok {
		return caller
	}
	return CallerIdentity{}
}
