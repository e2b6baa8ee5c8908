package follower

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/dynamicpb"
)

// メタデータのキー。gRPCのメタデータキーは小文字。
const (
	MetadataAuthorization = "authorization"
	MetadataRequestID     = "x-request-id"
)

// Client はフォロワーサービスのgRPCクライアント。
// 接続は全リクエストで共有し、並行に呼び出してよい。
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewClient はフォロワーサービスへのクライアントを生成する。
// 接続は最初の呼び出し時に確立される。timeoutが0の場合は呼び出し元のコンテキストの期限に従う。
func NewClient(target string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("フォロワーサービス %s への接続設定に失敗: %w", target, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// FollowUser はfollowerIDのユーザーがfollowedIDのユーザーをフォローする。
func (c *Client) FollowUser(ctx context.Context, followerID, followedID int64) (Result, error) {
	return c.Invoke(ctx, ActionFollow, followerID, followedID)
}

// UnfollowUser はfollowerIDのユーザーのfollowedIDに対するフォローを解除する。
func (c *Client) UnfollowUser(ctx context.Context, followerID, followedID int64) (Result, error) {
	return c.Invoke(ctx, ActionUnfollow, followerID, followedID)
}

// Invoke は操作に対応するRPCを呼び出す。
// 返るエラーはgRPCのステータスを保持しており、status.Code で判別できる。
func (c *Client) Invoke(ctx context.Context, action Action, followerID, followedID int64) (Result, error) {
	m, ok := methods[action]
	if !ok {
		return Result{}, fmt.Errorf("未知の操作です: %s", action)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := m.newRequest(followerID, followedID)
	resp := dynamicpb.NewMessage(m.output)
	if err := c.conn.Invoke(ctx, m.fullName, req, resp); err != nil {
		return Result{}, fmt.Errorf("%s の呼び出しに失敗: %w", m.name, err)
	}
	return m.readResponse(resp), nil
}

// Close は接続を閉じる。
func (c *Client) Close() error {
	return c.conn.Close()
}

// WithCallMetadata は呼び出し元のトークンとリクエストIDを送信メタデータに追加する。
// 空の値は追加しない。
func WithCallMetadata(ctx context.Context, bearerToken, requestID string) context.Context {
	kv := make([]string, 0, 4)
	if bearerToken != "" {
		kv = append(kv, MetadataAuthorization, "Bearer "+bearerToken)
	}
	if requestID != "" {
		kv = append(kv, MetadataRequestID, requestID)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
