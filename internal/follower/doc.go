// Package follower はフォロワーサービスとのgRPC通信を提供する。
//
// メッセージ型は生成コードを使わず、起動時に組み立てたディスクリプタと
// dynamicpb で表現する。契約は以下と等価である。
//
//	package follower;
//
//	service FollowerService {
//	  rpc FollowUser(FollowUserRequest) returns (FollowUserResponse);
//	  rpc UnfollowUser(UnfollowUserRequest) returns (UnfollowUserResponse);
//	}
//
//	message FollowUserRequest    { int64 follower_id = 1; int64 followed_id = 2; }
//	message FollowUserResponse   { bool success = 1; string message = 2; }
//	message UnfollowUserRequest  { int64 follower_id = 1; int64 followed_id = 2; }
//	message UnfollowUserResponse { bool success = 1; string message = 2; }
package follower
