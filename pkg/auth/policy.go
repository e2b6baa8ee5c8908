package auth

// Policy はルートに紐づく認可ルール。RequiredRole は1つのロールだけを指す。
type Policy struct {
	// RequiresAuth は認証済みの呼び出し元が必要かどうか。
	RequiresAuth bool
	// RequiredRole は必要なロール。空文字列の場合はロールを問わない。
	RequiredRole Role
}

// DenyReason は拒否理由。
type DenyReason int

const (
	// DenyNone は拒否していないことを表す。
	DenyNone DenyReason = iota
	// DenyUnauthenticated は認証が必要なのに呼び出し元が無い。
	DenyUnauthenticated
	// DenyForbidden はロールが一致しない。
	DenyForbidden
)

// String は拒否理由の文字列表現を返す。
func (r DenyReason) String() string {
	switch r {
	case DenyUnauthenticated:
		return "Unauthenticated"
	case DenyForbidden:
		return "Forbidden"
	default:
		return "None"
	}
}

// Decision は認可判定の結果。
type Decision struct {
	// Allowed は許可されたかどうか。
	Allowed bool
	// Reason は拒否理由。許可時は DenyNone。
	Reason DenyReason
}

// Allow は許可を表すDecision。
var Allow = Decision{Allowed: true}

// Deny は指定した理由の拒否を返す。
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Authorize はポリシーと呼び出し元から認可を判定する。
// 管理者であっても作者専用ルートは通らない。
func Authorize(policy Policy, principal *Principal) Decision {
	if (policy.RequiresAuth || policy.RequiredRole != "") && principal == nil {
		return Deny(DenyUnauthenticated)
	}
	if policy.RequiredRole != "" && principal.Role != policy.RequiredRole {
		return Deny(DenyForbidden)
	}
	return Allow
}
