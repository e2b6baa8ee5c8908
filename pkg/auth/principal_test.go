package auth_test

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/tourgate/internal/authtest"
	"github.com/nao1215/tourgate/pkg/auth"
)

// TestExtractPrincipal はExtractPrincipal関数を検証する。
func TestExtractPrincipal(t *testing.T) {
	t.Parallel()

	t.Run("発行元と同じ形のクレームからPrincipalを取り出せること", func(t *testing.T) {
		t.Parallel()

		token := authtest.Token(t, 42, "alice", auth.RoleAuthor)

		p, err := auth.ExtractPrincipal(token)
		if err != nil {
			t.Fatalf("ExtractPrincipal()でエラーが発生: %v", err)
		}
		if p.UserID != 42 {
			t.Errorf("UserID = %d, want %d", p.UserID, 42)
		}
		if p.Username != "alice" {
			t.Errorf("Username = %q, want %q", p.Username, "alice")
		}
		if p.Role != auth.RoleAuthor {
			t.Errorf("Role = %q, want %q", p.Role, auth.RoleAuthor)
		}
		if p.UserIDString() != "42" {
			t.Errorf("UserIDString() = %q, want %q", p.UserIDString(), "42")
		}
	})

	t.Run("短い形式のroleクレームと数値のidを受け付けること", func(t *testing.T) {
		t.Parallel()

		token := authtest.Sign(t, authtest.Key, jwt.MapClaims{
			"id":       9007199254740993,
			"username": "bob",
			"role":     "tourist",
		})

		p, err := auth.ExtractPrincipal(token)
		if err != nil {
			t.Fatalf("ExtractPrincipal()でエラーが発生: %v", err)
		}
		if p.UserID != 9007199254740993 {
			t.Errorf("UserID = %d, want %d", p.UserID, int64(9007199254740993))
		}
		if p.Role != auth.RoleTourist {
			t.Errorf("Role = %q, want %q", p.Role, auth.RoleTourist)
		}
	})

	t.Run("署名鍵が異なっても検証せずに取り出すこと", func(t *testing.T) {
		t.Parallel()

		token := authtest.Sign(t, "another-key", authtest.Claims(7, "carol", auth.RoleAdministrator))

		p, err := auth.ExtractPrincipal(token)
		if err != nil {
			t.Fatalf("ExtractPrincipal()でエラーが発生: %v", err)
		}
		if p.UserID != 7 {
			t.Errorf("UserID = %d, want %d", p.UserID, 7)
		}
	})

	t.Run("未知のロールは空のRoleになること", func(t *testing.T) {
		t.Parallel()

		token := authtest.Sign(t, authtest.Key, jwt.MapClaims{"id": "3", "role": "Unknown"})

		p, err := auth.ExtractPrincipal(token)
		if err != nil {
			t.Fatalf("ExtractPrincipal()でエラーが発生: %v", err)
		}
		if p.Role != "" {
			t.Errorf("Role = %q, want empty", p.Role)
		}
	})

	errorCases := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "idクレームが無い場合",
			token: func(t *testing.T) string {
				return authtest.Sign(t, authtest.Key, jwt.MapClaims{"username": "x", "role": "Author"})
			},
		},
		{
			name: "idクレームが整数でない場合",
			token: func(t *testing.T) string {
				return authtest.Sign(t, authtest.Key, jwt.MapClaims{"id": "abc"})
			},
		},
		{
			name: "idクレームが小数の場合",
			token: func(t *testing.T) string {
				return authtest.Sign(t, authtest.Key, jwt.MapClaims{"id": 1.5})
			},
		},
		{
			name: "トークン構造が壊れている場合",
			token: func(_ *testing.T) string {
				return "not-a-jwt"
			},
		},
	}
	for _, tc := range errorCases {
		t.Run(tc.name+"はErrMalformedTokenを返すこと", func(t *testing.T) {
			t.Parallel()

			_, err := auth.ExtractPrincipal(tc.token(t))
			if !errors.Is(err, auth.ErrMalformedToken) {
				t.Errorf("err = %v, want ErrMalformedToken", err)
			}
		})
	}
}

// TestParseRole はParseRole関数を検証する。
func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want auth.Role
		ok   bool
	}{
		{in: "Administrator", want: auth.RoleAdministrator, ok: true},
		{in: "author", want: auth.RoleAuthor, ok: true},
		{in: " TOURIST ", want: auth.RoleTourist, ok: true},
		{in: "Guide", want: "", ok: false},
		{in: "", want: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := auth.ParseRole(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
