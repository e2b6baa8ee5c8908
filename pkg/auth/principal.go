package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role は呼び出し元のロール。ロール間に包含関係は無い。
type Role string

const (
	// RoleAdministrator は管理者ロール。
	RoleAdministrator Role = "Administrator"
	// RoleAuthor はツアーやブログを作成する作者ロール。
	RoleAuthor Role = "Author"
	// RoleTourist は観光客ロール。
	RoleTourist Role = "Tourist"
)

// クレーム名。発行元サービスは長い形式のロールクレームを使う。
const (
	ClaimUserID   = "id"
	ClaimUsername = "username"
	ClaimRole     = "role"
	// ClaimRoleURI は長い形式のロールクレーム名。
	ClaimRoleURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// ErrMalformedToken はトークン構造が不正、または必須クレームが欠けている場合のエラー。
var ErrMalformedToken = errors.New("malformed token")

// ParseRole は文字列をRoleに変換する。大文字小文字は区別しない。
func ParseRole(s string) (Role, bool) {
	for _, r := range []Role{RoleAdministrator, RoleAuthor, RoleTourist} {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Principal は検証済みトークンから導出されたリクエスト単位の呼び出し元。
type Principal struct {
	// UserID はユーザーの数値ID。
	UserID int64
	// Username はユーザー名。
	Username string
	// Role はユーザーのロール。未知のロールの場合は空文字列。
	Role Role
}

// UserIDString はUserIDを10進文字列で返す。X-User-Idヘッダー等に使う。
func (p Principal) UserIDString() string {
	return strconv.FormatInt(p.UserID, 10)
}

// ExtractPrincipal はトークンのクレームからPrincipalを生成する。
// 署名と有効期限は検証しない。IDクレームが無い、または整数として解釈できない場合は
// ErrMalformedToken を返す。
func ExtractPrincipal(token string) (Principal, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithJSONNumber())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	id, err := userIDClaim(claims)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{UserID: id}
	if name, ok := claims[ClaimUsername].(string); ok {
		p.Username = name
	}
	if role, ok := ParseRole(roleClaim(claims)); ok {
		p.Role = role
	}
	return p, nil
}

// userIDClaim はIDクレームを整数として取り出す。文字列と数値の両方を受け付ける。
func userIDClaim(claims jwt.MapClaims) (int64, error) {
	raw, ok := claims[ClaimUserID]
	if !ok {
		return 0, fmt.Errorf("%w: %s クレームがありません", ErrMalformedToken, ClaimUserID)
	}

	var (
		id  int64
		err error
	)
	switch v := raw.(type) {
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case json.Number:
		id, err = v.Int64()
	case float64:
		id = int64(v)
		if float64(id) != v {
			err = errors.New("整数ではありません")
		}
	default:
		err = fmt.Errorf("型 %T は扱えません", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s クレームが不正: %v", ErrMalformedToken, ClaimUserID, err)
	}
	return id, nil
}

// roleClaim は短い形式と長い形式のどちらかに入っているロールを返す。
// 複数ロールが配列で入っている場合は先頭を使う。
func roleClaim(claims jwt.MapClaims) string {
	for _, name := range []string{ClaimRole, ClaimRoleURI} {
		switch v := claims[name].(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
