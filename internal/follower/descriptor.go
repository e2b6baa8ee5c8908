package follower

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ServiceName はフォロワーサービスの完全修飾名。
const ServiceName = "follower.FollowerService"

// protoFile はディスクリプタのファイル名。
const protoFile = "follower/follower.proto"

// フィールド名。
const (
	fieldFollowerID = "follower_id"
	fieldFollowedID = "followed_id"
	fieldSuccess    = "success"
	fieldMessage    = "message"
)

// Action はフォロー関係に対する操作。
type Action int

const (
	// ActionFollow はフォローする操作。
	ActionFollow Action = iota + 1
	// ActionUnfollow はフォローを解除する操作。
	ActionUnfollow
)

// String は操作に対応するRPCメソッド名を返す。
func (a Action) String() string {
	switch a {
	case ActionFollow:
		return "FollowUser"
	case ActionUnfollow:
		return "UnfollowUser"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Result はRPCレスポンスの内容。Successがfalseでも業務上の結果であり、通信エラーではない。
type Result struct {
	Success bool
	Message string
}

// method は1つのRPCメソッドのディスクリプタ。
type method struct {
	name     string
	fullName string
	input    protoreflect.MessageDescriptor
	output   protoreflect.MessageDescriptor
}

// methods は操作ごとのメソッド定義。
var methods = mustBuildMethods()

// mustBuildMethods はディスクリプタを組み立ててメソッド表を返す。
func mustBuildMethods() map[Action]method {
	fd, err := buildFile()
	if err != nil {
		panic(fmt.Sprintf("follower: ディスクリプタの構築に失敗: %v", err))
	}

	svc := fd.Services().ByName("FollowerService")
	out := make(map[Action]method, 2)
	for _, action := range []Action{ActionFollow, ActionUnfollow} {
		md := svc.Methods().ByName(protoreflect.Name(action.String()))
		out[action] = method{
			name:     action.String(),
			fullName: "/" + string(svc.FullName()) + "/" + action.String(),
			input:    md.Input(),
			output:   md.Output(),
		}
	}
	return out
}

// buildFile はフォロワーサービスのファイルディスクリプタを組み立てる。
func buildFile() (protoreflect.FileDescriptor, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String("follower"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			idPairMessage("FollowUserRequest"),
			resultMessage("FollowUserResponse"),
			idPairMessage("UnfollowUserRequest"),
			resultMessage("UnfollowUserResponse"),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("FollowerService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpcMethod("FollowUser"),
				rpcMethod("UnfollowUser"),
			},
		}},
	}
	return protodesc.NewFile(fdp, nil)
}

func idPairMessage(name string) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField(fieldFollowerID, "followerId", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			scalarField(fieldFollowedID, "followedId", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
		},
	}
}

func resultMessage(name string) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField(fieldSuccess, "success", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			scalarField(fieldMessage, "message", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		},
	}
}

func scalarField(name, jsonName string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func rpcMethod(name string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".follower." + name + "Request"),
		OutputType: proto.String(".follower." + name + "Response"),
	}
}

// newRequest は操作のリクエストメッセージを生成する。
func (m method) newRequest(followerID, followedID int64) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(m.input)
	fields := m.input.Fields()
	msg.Set(fields.ByName(fieldFollowerID), protoreflect.ValueOfInt64(followerID))
	msg.Set(fields.ByName(fieldFollowedID), protoreflect.ValueOfInt64(followedID))
	return msg
}

// readRequest はリクエストメッセージからIDの組を取り出す。
func (m method) readRequest(msg protoreflect.Message) (followerID, followedID int64) {
	fields := m.input.Fields()
	return msg.Get(fields.ByName(fieldFollowerID)).Int(), msg.Get(fields.ByName(fieldFollowedID)).Int()
}

// newResponse は結果からレスポンスメッセージを生成する。
func (m method) newResponse(r Result) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(m.output)
	fields := m.output.Fields()
	msg.Set(fields.ByName(fieldSuccess), protoreflect.ValueOfBool(r.Success))
	msg.Set(fields.ByName(fieldMessage), protoreflect.ValueOfString(r.Message))
	return msg
}

// readResponse はレスポンスメッセージから結果を取り出す。
func (m method) readResponse(msg protoreflect.Message) Result {
	fields := m.output.Fields()
	return Result{
		Success: msg.Get(fields.ByName(fieldSuccess)).Bool(),
		Message: msg.Get(fields.ByName(fieldMessage)).String(),
	}
}
