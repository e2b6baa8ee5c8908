package gateway

import (
	"net/http"

	"github.com/nao1215/tourgate/internal/config"
	"github.com/nao1215/tourgate/internal/follower"
	"github.com/nao1215/tourgate/pkg/auth"
)

// BodyMode はリクエストボディの扱い方。
type BodyMode int

const (
	// BodyNone はボディを転送しない。
	BodyNone BodyMode = iota
	// BodyJSON はボディをそのままのバイト列で転送する。
	BodyJSON
	// BodyMultipart はmultipart/form-dataを組み立て直して転送する。
	BodyMultipart
	// BodyRPC はHTTP転送せずフォロワーサービスのRPCに変換する。
	BodyRPC
)

// String はボディ処理モードの名前を返す。
func (m BodyMode) String() string {
	switch m {
	case BodyNone:
		return "None"
	case BodyJSON:
		return "Json"
	case BodyMultipart:
		return "Multipart"
	case BodyRPC:
		return "RpcTranslate"
	default:
		return "Unknown"
	}
}

// CallerIDParam は転送先パスの中で呼び出し元のユーザーIDに置き換わるプレースホルダー名。
const CallerIDParam = "callerId"

// RouteDescriptor は公開エンドポイント1つ分の定義。起動後は変更しない。
type RouteDescriptor struct {
	// Method はHTTPメソッド。
	Method string
	// Pattern は /api/gateway/ 以下の公開パス。{name} と {name:long} / {name:int} を使える。
	Pattern string
	// Service は転送先サービスの論理名。BodyRPC では使わない。
	Service string
	// Target は転送先のパステンプレート。Patternのパラメータと {callerId} を参照できる。
	Target string
	// Policy は認可ポリシー。
	Policy auth.Policy
	// InjectCallerID は X-User-Id ヘッダーに呼び出し元のIDを付けるかどうか。
	InjectCallerID bool
	// Body はリクエストボディの扱い。
	Body BodyMode
	// CallerQuery は呼び出し元のIDで上書きするクエリパラメータ名。空の場合は上書きしない。
	CallerQuery string
	// Action はBodyRPCで呼び出すフォロワー操作。
	Action follower.Action
}

// 認可ポリシー。
var (
	publicAccess  = auth.Policy{}
	authenticated = auth.Policy{RequiresAuth: true}
	administrator = auth.Policy{RequiresAuth: true, RequiredRole: auth.RoleAdministrator}
	author        = auth.Policy{RequiresAuth: true, RequiredRole: auth.RoleAuthor}
	tourist       = auth.Policy{RequiresAuth: true, RequiredRole: auth.RoleTourist}
)

// サービス名の短縮形。
const (
	stakeholders = config.ServiceStakeholders
	tours        = config.ServiceTours
	blogs        = config.ServiceBlogs
	purchase     = config.ServicePurchase
	followers    = config.ServiceFollowers
)

// DefaultRoutes はゲートウェイが公開する全エンドポイントの表を返す。
// 先に書いたルートが優先される。
func DefaultRoutes() []RouteDescriptor {
	return []RouteDescriptor{
		// ステークホルダー
		{Method: http.MethodPost, Pattern: "stakeholders/users/login", Service: stakeholders, Target: "api/users/login", Policy: publicAccess, Body: BodyJSON},
		{Method: http.MethodPost, Pattern: "stakeholders/users/register", Service: stakeholders, Target: "api/users/register", Policy: publicAccess, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "stakeholders/administrator/account", Service: stakeholders, Target: "api/administrator/account", Policy: administrator},
		{Method: http.MethodPut, Pattern: "stakeholders/administrator/account/{userId:long}/block", Service: stakeholders, Target: "api/administrator/account/{userId}/block", Policy: administrator, Body: BodyJSON},
		{Method: http.MethodPut, Pattern: "stakeholders/administrator/account/{userId:long}/unblock", Service: stakeholders, Target: "api/administrator/account/{userId}/unblock", Policy: administrator, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "stakeholders/user/profile", Service: stakeholders, Target: "api/user/profile", Policy: authenticated},
		{Method: http.MethodPatch, Pattern: "stakeholders/user/profile", Service: stakeholders, Target: "api/user/profile", Policy: authenticated, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "stakeholders/profile", Service: stakeholders, Target: "api/profile", Policy: authenticated},
		{Method: http.MethodPut, Pattern: "stakeholders/profile", Service: stakeholders, Target: "api/profile", Policy: authenticated, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "stakeholders/profile/all", Service: stakeholders, Target: "api/profile/all", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "stakeholders/profile/{userId:long}", Service: stakeholders, Target: "api/profile/{userId}", Policy: authenticated},

		// ツアー
		{Method: http.MethodPost, Pattern: "tours", Service: tours, Target: "api/tours", Policy: author, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "tours/my", Service: tours, Target: "api/tours/my", Policy: author},
		{Method: http.MethodGet, Pattern: "tours/{id:long}", Service: tours, Target: "api/tours/{id}", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "tours", Service: tours, Target: "api/tours", Policy: authenticated},
		{Method: http.MethodPut, Pattern: "tours/{id:long}", Service: tours, Target: "api/tours/{id}", Policy: author, Body: BodyJSON},
		{Method: http.MethodPatch, Pattern: "tours/{id:long}/publish", Service: tours, Target: "api/tours/{id}/publish", Policy: author, Body: BodyJSON},
		{Method: http.MethodPatch, Pattern: "tours/{id:long}/archive", Service: tours, Target: "api/tours/{id}/archive", Policy: author, Body: BodyJSON},

		// ツアーレビュー
		{Method: http.MethodPost, Pattern: "tourreviews", Service: tours, Target: "api/tourreviews", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "tourreviews/my", Service: tours, Target: "api/tourreviews", Policy: authenticated, CallerQuery: "userId"},
		{Method: http.MethodGet, Pattern: "tourreviews/tour/{tourId:long}/rating", Service: tours, Target: "api/tourreviews/tour/{tourId}/rating", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "tourreviews/{id:long}", Service: tours, Target: "api/tourreviews/{id}", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "tourreviews", Service: tours, Target: "api/tourreviews", Policy: authenticated},
		{Method: http.MethodPut, Pattern: "tourreviews/{id:long}", Service: tours, Target: "api/tourreviews/{id}", Policy: authenticated, Body: BodyJSON},
		{Method: http.MethodDelete, Pattern: "tourreviews/{id:long}", Service: tours, Target: "api/tourreviews/{id}", Policy: authenticated},

		// 購入
		{Method: http.MethodGet, Pattern: "purchase/shoppingcart/my", Service: purchase, Target: "api/shoppingcart/user/{callerId}", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/shoppingcart/my/active", Service: purchase, Target: "api/shoppingcart/user/{callerId}/active", Policy: tourist},
		{Method: http.MethodPost, Pattern: "purchase/shoppingcart", Service: purchase, Target: "api/shoppingcart", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodPost, Pattern: "purchase/shoppingcart/add-item", Service: purchase, Target: "api/shoppingcart/add-item", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodDelete, Pattern: "purchase/shoppingcart/my/item/{orderItemId:long}", Service: purchase, Target: "api/shoppingcart/user/{callerId}/item/{orderItemId}", Policy: tourist},
		{Method: http.MethodDelete, Pattern: "purchase/shoppingcart/my/clear", Service: purchase, Target: "api/shoppingcart/user/{callerId}/clear", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/shoppingcart/{id:long}", Service: purchase, Target: "api/shoppingcart/{id}", Policy: tourist},
		{Method: http.MethodPost, Pattern: "purchase/orderitems", Service: purchase, Target: "api/orderitems", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "purchase/orderitems/shopping-cart/{shoppingCartId:long}", Service: purchase, Target: "api/orderitems/shopping-cart/{shoppingCartId}", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/orderitems/shopping-cart/{shoppingCartId:long}/count", Service: purchase, Target: "api/orderitems/shopping-cart/{shoppingCartId}/count", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/orderitems/shopping-cart/{shoppingCartId:long}/total", Service: purchase, Target: "api/orderitems/shopping-cart/{shoppingCartId}/total", Policy: tourist},
		{Method: http.MethodPut, Pattern: "purchase/orderitems/{id:long}", Service: purchase, Target: "api/orderitems/{id}", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodDelete, Pattern: "purchase/orderitems/{id:long}", Service: purchase, Target: "api/orderitems/{id}", Policy: tourist},
		{Method: http.MethodPost, Pattern: "purchase/cart", Service: purchase, Target: "api/purchase/cart", Policy: tourist, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "purchase/my", Service: purchase, Target: "api/purchase/user/{callerId}", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/check/{tourId:long}", Service: purchase, Target: "api/purchase/check/{callerId}/{tourId}", Policy: tourist},
		{Method: http.MethodGet, Pattern: "purchase/tour/{tourId:long}", Service: purchase, Target: "api/purchase/tour/{tourId}", Policy: author},

		// ブログ
		{Method: http.MethodPost, Pattern: "blogs", Service: blogs, Target: "api/blogs", Policy: author, InjectCallerID: true, Body: BodyMultipart},
		{Method: http.MethodGet, Pattern: "blogs", Service: blogs, Target: "api/blogs", Policy: authenticated},
		{Method: http.MethodPost, Pattern: "blogs/following", Service: blogs, Target: "api/blogs/following", Policy: authenticated, Body: BodyJSON},
		{Method: http.MethodGet, Pattern: "blogs/my", Service: blogs, Target: "api/blogs/my", Policy: authenticated, InjectCallerID: true},
		{Method: http.MethodGet, Pattern: "blogs/{id:long}", Service: blogs, Target: "api/blogs/{id}", Policy: authenticated},
		{Method: http.MethodPut, Pattern: "blogs/{id:long}", Service: blogs, Target: "api/blogs/{id}", Policy: author, InjectCallerID: true, Body: BodyMultipart},
		{Method: http.MethodDelete, Pattern: "blogs/{id:long}", Service: blogs, Target: "api/blogs/{id}", Policy: authenticated, InjectCallerID: true},

		// フォロワー
		{Method: http.MethodPost, Pattern: "followers/{id:long}/follow", Policy: authenticated, Body: BodyRPC, Action: follower.ActionFollow},
		{Method: http.MethodPost, Pattern: "followers/{id:long}/unfollow", Policy: authenticated, Body: BodyRPC, Action: follower.ActionUnfollow},
		{Method: http.MethodGet, Pattern: "followers/check", Service: followers, Target: "api/followers/check", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "followers/my/recommendations", Service: followers, Target: "api/followers/{callerId}/recommendations", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "followers/{userId:long}/followers", Service: followers, Target: "api/followers/{userId}/followers", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "followers/{userId:long}/following", Service: followers, Target: "api/followers/{userId}/following", Policy: authenticated},
		{Method: http.MethodGet, Pattern: "followers/{userId:long}/info", Service: followers, Target: "api/followers/{userId}/info", Policy: authenticated},
	}
}
