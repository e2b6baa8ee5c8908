package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/tourgate/pkg/auth"
)

const contextKeyPolicy = "route_policy"

// headerTokenExpired は有効期限切れを呼び出し元に知らせるレスポンスヘッダー。
const headerTokenExpired = "Token-Expired"

// SetPolicy は一致したルートの認可ポリシーをコンテキストに設定する。
func SetPolicy(c *gin.Context, policy auth.Policy) {
	c.Set(contextKeyPolicy, policy)
}

// GetPolicy はコンテキストの認可ポリシーを取得する。未設定の場合はゼロ値（認証不要）。
func GetPolicy(c *gin.Context) auth.Policy {
	v, _ := c.Get(contextKeyPolicy)
	policy, _ := v.(auth.Policy)
	return policy
}

// DenyFunc は認可が拒否されたときのレスポンスを書き込む。
// authErr はAuthenticateが記録した検証エラーで、トークンが無い場合はnil。
type DenyFunc func(c *gin.Context, reason auth.DenyReason, authErr error)

// Authorize はコンテキストのポリシーを評価し、拒否された場合に401または403で中断する
// Ginミドルウェアを返す。SetPolicyとAuthenticateが事前に適用されている必要がある。
func Authorize() gin.HandlerFunc {
	return AuthorizeWith(writeDenial)
}

// AuthorizeWith はAuthorizeと同じ判定を行い、拒否時のレスポンスをdenyに任せる。
// 有効期限切れの場合はdenyの前にToken-Expiredヘッダーを設定する。
func AuthorizeWith(deny DenyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := auth.Authorize(GetPolicy(c), GetPrincipal(c))
		if decision.Allowed {
			c.Next()
			return
		}

		authErr := GetAuthError(c)
		if decision.Reason != auth.DenyForbidden && errors.Is(authErr, ErrTokenExpired) {
			c.Header(headerTokenExpired, "true")
		}
		deny(c, decision.Reason, authErr)
		c.Abort()
	}
}

// writeDenial は拒否理由に対応するステータスと {"message"} を書き込む。
func writeDenial(c *gin.Context, reason auth.DenyReason, authErr error) {
	status := http.StatusUnauthorized
	if reason == auth.DenyForbidden {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"message": DenialMessage(reason, authErr)})
}

// DenialMessage は拒否理由と認証失敗の原因に応じて呼び出し元に返すメッセージを返す。
func DenialMessage(reason auth.DenyReason, authErr error) string {
	if reason == auth.DenyForbidden {
		return "この操作を行う権限がありません"
	}
	switch {
	case authErr == nil:
		return "Authorizationヘッダーが必要です"
	case errors.Is(authErr, ErrTokenExpired):
		return "トークンの有効期限が切れています"
	case errors.Is(authErr, auth.ErrMalformedToken):
		return "トークンのクレームが不正です"
	default:
		return "トークンが無効です"
	}
}
