package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/tourgate/pkg/auth"
)

// Ginコンテキストのキー。
const (
	contextKeyPrincipal = "principal"
	contextKeyToken     = "bearer_token"
	contextKeyAuthError = "auth_error"
)

var (
	// ErrInvalidToken は署名・発行者・対象者の検証に失敗したトークンを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
)

// JWTOptions はトークン検証のパラメータ。
type JWTOptions struct {
	// Key はHS256の署名鍵。
	Key string
	// Issuer は期待する発行者。空の場合は検証しない。
	Issuer string
	// Audience は期待する対象者。空の場合は検証しない。
	Audience string
}

// Authenticate はBearerトークンの署名と有効期限を検証するGinミドルウェアを返す。
//
// 検証に成功するとPrincipalとトークン文字列をコンテキストに設定する。
// 失敗してもリクエストは中断せず、理由だけを記録する。認証が必要かどうかは
// ルートごとのポリシーでAuthorizeミドルウェアが判定する。
func Authenticate(opts JWTOptions) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	parser := jwt.NewParser(parserOpts...)
	keyFunc := func(_ *jwt.Token) (any, error) {
		return []byte(opts.Key), nil
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			c.Set(contextKeyAuthError, fmt.Errorf("%w: Bearer トークン形式が不正です", ErrInvalidToken))
			c.Next()
			return
		}

		if _, err := parser.Parse(tokenString, keyFunc); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.Set(contextKeyAuthError, ErrTokenExpired)
			} else {
				c.Set(contextKeyAuthError, fmt.Errorf("%w: %v", ErrInvalidToken, err))
			}
			c.Next()
			return
		}

		principal, err := auth.ExtractPrincipal(tokenString)
		if err != nil {
			c.Set(contextKeyAuthError, err)
			c.Next()
			return
		}

		c.Set(contextKeyPrincipal, principal)
		c.Set(contextKeyToken, tokenString)
		c.Next()
	}
}

// GetPrincipal はGinコンテキストから認証済みの呼び出し元を取得する。
// Authenticateミドルウェアで検証されていない場合はnilを返す。
func GetPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return nil
	}
	p, ok := v.(auth.Principal)
	if !ok {
		return nil
	}
	return &p
}

// GetToken は検証済みのBearerトークン文字列を取得する。
func GetToken(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}

// GetAuthError はトークン検証に失敗した理由を取得する。
// トークンが無い、または検証に成功した場合はnilを返す。
func GetAuthError(c *gin.Context) error {
	v, ok := c.Get(contextKeyAuthError)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}
