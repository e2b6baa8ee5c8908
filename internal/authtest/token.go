// Package authtest はテスト用のJWTトークンを発行するヘルパーを提供する。
// ゲートウェイ自身はトークンを発行しないため、本番コードからは使わない。
package authtest

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/tourgate/pkg/auth"
)

// テストで共通に使う署名設定。
const (
	Key      = "test-secret-key-for-gateway-unit-tests"
	Issuer   = "explorer"
	Audience = "explorer-front.com"
)

// Claims は発行元サービスと同じ形のクレームを生成する。
// ロールは長い形式のクレーム名で格納する。
func Claims(userID int64, username string, role auth.Role) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti": strconv.FormatInt(now.UnixNano(), 10),
		"iss": Issuer,
		"aud": Audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	claims[auth.ClaimUserID] = strconv.FormatInt(userID, 10)
	claims[auth.ClaimUsername] = username
	claims[auth.ClaimRoleURI] = string(role)
	return claims
}

// Sign はクレームをHS256で署名する。
func Sign(t testing.TB, key string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		t.Fatalf("テスト用JWTの署名に失敗: %v", err)
	}
	return signed
}

// Token は既定の鍵で署名したトークンを返す。
func Token(t testing.TB, userID int64, username string, role auth.Role) string {
	t.Helper()
	return Sign(t, Key, Claims(userID, username, role))
}
