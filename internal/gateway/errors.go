package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/tourgate/pkg/auth"
	"github.com/nao1215/tourgate/pkg/middleware"
)

// ErrorKind はゲートウェイ自身が返すエラーの分類。
type ErrorKind int

const (
	// KindUnauthenticated は認証が必要なのに呼び出し元が無い。
	KindUnauthenticated ErrorKind = iota + 1
	// KindForbidden はロールが一致しない。
	KindForbidden
	// KindMalformedToken はトークンのクレームが不正。
	KindMalformedToken
	// KindRouteNotFound は一致するルートが無い。
	KindRouteNotFound
	// KindUnknownService はルートが指すサービスがレジストリに無い。設定の不整合を表す。
	KindUnknownService
	// KindUpstreamUnreachable は下流サービスに接続できない。
	KindUpstreamUnreachable
	// KindUpstreamTimeout は下流サービスの応答がタイムアウトした。
	KindUpstreamTimeout
	// KindInvalidRequest はリクエストボディを読み取れない。
	KindInvalidRequest
	// KindRequestTooLarge はリクエストボディが上限を超えた。
	KindRequestTooLarge
	// KindRPCFailure はRPCが通信以外の理由で失敗した。
	KindRPCFailure
)

// String はエラー分類の名前を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindForbidden:
		return "Forbidden"
	case KindMalformedToken:
		return "MalformedToken"
	case KindRouteNotFound:
		return "RouteNotFound"
	case KindUnknownService:
		return "UnknownService"
	case KindUpstreamUnreachable:
		return "UpstreamUnreachable"
	case KindUpstreamTimeout:
		return "UpstreamTimeout"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindRequestTooLarge:
		return "RequestTooLarge"
	case KindRPCFailure:
		return "RPCFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Status はエラー分類に対応するHTTPステータスコードを返す。
func (k ErrorKind) Status() int {
	switch k {
	case KindUnauthenticated, KindMalformedToken:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// message は呼び出し元に返す汎用メッセージ。認証と認可の分類はErrorのmessageが扱う。
func (k ErrorKind) message() string {
	switch k {
	case KindRouteNotFound:
		return "エンドポイントが見つかりません"
	case KindInvalidRequest:
		return "リクエストを読み取れません"
	case KindRequestTooLarge:
		return "リクエストボディが大きすぎます"
	default:
		return "ゲートウェイでエラーが発生しました"
	}
}

// Error はゲートウェイ自身が生成するエラー。
type Error struct {
	// Kind はエラー分類。
	Kind ErrorKind
	// Err は原因となったエラー。呼び出し元には返さない。
	Err error
}

// newError は分類付きのエラーを生成する。
func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// message は呼び出し元に返すメッセージ。認証と認可の分類は原因に応じて
// Authorizeミドルウェアと同じ文言にする。
func (e *Error) message() string {
	switch e.Kind {
	case KindUnauthenticated, KindMalformedToken:
		return middleware.DenialMessage(auth.DenyUnauthenticated, e.Err)
	case KindForbidden:
		return middleware.DenialMessage(auth.DenyForbidden, e.Err)
	default:
		return e.Kind.message()
	}
}

// denyAccess は認可の拒否理由をエラー分類に変換して書き込む。
func denyAccess(c *gin.Context, reason auth.DenyReason, authErr error) {
	kind := KindUnauthenticated
	switch {
	case reason == auth.DenyForbidden:
		kind = KindForbidden
	case errors.Is(authErr, auth.ErrMalformedToken):
		kind = KindMalformedToken
	}
	writeError(c, newError(kind, authErr))
}

// KindOf はエラーの分類を返す。ゲートウェイのエラーでない場合は0。
func KindOf(err error) ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return 0
}

// writeError はエラーを {"message"} 形式のレスポンスに変換する。
// 分類の無いエラーは500として扱う。原因はログ用にコンテキストへ記録する。
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := ErrorKind(0).message()
	var gwErr *Error
	if errors.As(err, &gwErr) {
		status = gwErr.Kind.Status()
		message = gwErr.message()
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
