package gateway

import (
	"context"
	"errors"

	"github.com/nao1215/tourgate/internal/follower"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// followerInvoker はフォロワーサービスのRPCを呼び出す。
type followerInvoker interface {
	Invoke(ctx context.Context, action follower.Action, followerID, followedID int64) (follower.Result, error)
}

// BridgeResult はフォロー操作の結果としてREST呼び出し元に返すJSON。
type BridgeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Bridge はREST呼び出しをフォロワーサービスのRPCに変換する。
type Bridge struct {
	client followerInvoker
	logger *zap.Logger
}

// NewBridge は新しいBridgeを生成する。clientがnilの場合、全ての呼び出しは KindUnknownService になる。
func NewBridge(client followerInvoker, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, logger: logger}
}

// FollowAction はcallerIDのユーザーとしてtargetIDに対する操作を実行する。
// フォローする側は常に認証済みの呼び出し元で、リクエストの値からは決めない。
// success=false は業務上の結果であり、エラーにはしない。
func (b *Bridge) FollowAction(ctx context.Context, action follower.Action, callerID, targetID int64) (BridgeResult, error) {
	if b.client == nil {
		b.logger.Error("フォロワーサービスが設定されていません", zap.Stringer("action", action))
		return BridgeResult{}, newError(KindUnknownService, errors.New("フォロワーサービスが設定されていません"))
	}

	res, err := b.client.Invoke(ctx, action, callerID, targetID)
	if err != nil {
		kind := rpcErrorKind(err)
		b.logger.Warn("フォロワーサービスの呼び出しに失敗しました",
			zap.Stringer("action", action),
			zap.Int64("follower_id", callerID),
			zap.Int64("followed_id", targetID),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
		return BridgeResult{}, newError(kind, err)
	}

	b.logger.Info("フォロー操作を実行しました",
		zap.Stringer("action", action),
		zap.Int64("follower_id", callerID),
		zap.Int64("followed_id", targetID),
		zap.Bool("success", res.Success),
	)
	return BridgeResult{Success: res.Success, Message: res.Message}, nil
}

// rpcErrorKind はgRPCのステータスをエラー分類に変換する。
func rpcErrorKind(err error) ErrorKind {
	switch status.Code(err) {
	case codes.Unavailable, codes.Canceled:
		return KindUpstreamUnreachable
	case codes.DeadlineExceeded:
		return KindUpstreamTimeout
	default:
		return KindRPCFailure
	}
}
