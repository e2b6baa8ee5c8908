// Package followertest はbufconn上でフォロワーサービスを起動するテスト用ヘルパーを提供する。
package followertest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nao1215/tourgate/internal/follower"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// bufSize はインメモリリスナーのバッファサイズ。
const bufSize = 1 << 20

// Funcs は関数フィールドでfollower.Serverを実装する。未設定の操作はUnimplementedを返す。
type Funcs struct {
	Follow   func(ctx context.Context, followerID, followedID int64) (follower.Result, error)
	Unfollow func(ctx context.Context, followerID, followedID int64) (follower.Result, error)
}

var _ follower.Server = Funcs{}

// FollowUser はFollowを呼び出す。
func (f Funcs) FollowUser(ctx context.Context, followerID, followedID int64) (follower.Result, error) {
	if f.Follow == nil {
		return follower.Result{}, status.Error(codes.Unimplemented, "FollowUser is not implemented")
	}
	return f.Follow(ctx, followerID, followedID)
}

// UnfollowUser はUnfollowを呼び出す。
func (f Funcs) UnfollowUser(ctx context.Context, followerID, followedID int64) (follower.Result, error) {
	if f.Unfollow == nil {
		return follower.Result{}, status.Error(codes.Unimplemented, "UnfollowUser is not implemented")
	}
	return f.Unfollow(ctx, followerID, followedID)
}

// Start はbufconn上にフォロワーサービスを起動し、接続済みのクライアントを返す。
// サーバーとクライアントはテスト終了時に停止する。
func Start(t testing.TB, impl follower.Server, timeout time.Duration) *follower.Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()
	follower.Register(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := follower.NewClient("passthrough:///bufnet", timeout,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("フォロワークライアントの生成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Unreachable は接続先が存在しないクライアントを返す。呼び出しは必ず失敗する。
func Unreachable(t testing.TB) *follower.Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	_ = lis.Close()

	client, err := follower.NewClient("passthrough:///bufnet", 0,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("フォロワークライアントの生成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
