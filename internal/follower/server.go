package follower

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Server はフォロワーサービスのサーバー側実装が満たすインターフェース。
type Server interface {
	FollowUser(ctx context.Context, followerID, followedID int64) (Result, error)
	UnfollowUser(ctx context.Context, followerID, followedID int64) (Result, error)
}

// Register はgRPCサーバーにフォロワーサービスを登録する。
func Register(s grpc.ServiceRegistrar, impl Server) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*Server)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: ActionFollow.String(), Handler: unaryHandler(ActionFollow)},
			{MethodName: ActionUnfollow.String(), Handler: unaryHandler(ActionUnfollow)},
		},
		Metadata: protoFile,
	}, impl)
}

// unaryHandler は操作ごとのgRPCメソッドハンドラーを返す。
func unaryHandler(action Action) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	m := methods[action]
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := dynamicpb.NewMessage(m.input)
		if err := dec(req); err != nil {
			return nil, err
		}

		call := func(ctx context.Context, in any) (any, error) {
			msg, ok := in.(protoreflect.ProtoMessage)
			if !ok {
				return nil, status.Errorf(codes.Internal, "想定外のリクエスト型: %T", in)
			}
			followerID, followedID := m.readRequest(msg.ProtoReflect())

			result, err := dispatch(ctx, srv.(Server), action, followerID, followedID)
			if err != nil {
				return nil, err
			}
			return m.newResponse(result), nil
		}

		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: m.fullName}
		return interceptor(ctx, req, info, call)
	}
}

// dispatch は操作に応じて実装のメソッドを呼び出す。
func dispatch(ctx context.Context, impl Server, action Action, followerID, followedID int64) (Result, error) {
	switch action {
	case ActionFollow:
		return impl.FollowUser(ctx, followerID, followedID)
	case ActionUnfollow:
		return impl.UnfollowUser(ctx, followerID, followedID)
	default:
		return Result{}, status.Error(codes.Unimplemented, fmt.Sprintf("未知の操作です: %s", action))
	}
}
