// Package rpc describes the ecoquest.v1.EcoQuest gRPC service. Messages are
// google.protobuf.Struct values whose fields follow the JSON bodies of the HTTP API.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ecoquest.v1.EcoQuest"

// Method names.
const (
	MethodRegister        = "Register"
	MethodLogin           = "Login"
	MethodProfile         = "Profile"
	MethodSubmitActivity  = "SubmitActivity"
	MethodListActivities  = "ListActivities"
	MethodTodayActivities = "TodayActivities"
	MethodLeaderboard     = "Leaderboard"
)

// FullMethod returns "/ecoquest.v1.EcoQuest/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// EcoQuestServer is implemented by the server.
type EcoQuestServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Profile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitActivity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActivities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TodayActivities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Leaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(EcoQuestServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodDesc {
	full := FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(EcoQuestServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(EcoQuestServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is registered with grpc.Server. It names no .proto file: the
// service is described here in Go, not generated.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EcoQuestServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, EcoQuestServer.Register),
		unary(MethodLogin, EcoQuestServer.Login),
		unary(MethodProfile, EcoQuestServer.Profile),
		unary(MethodSubmitActivity, EcoQuestServer.SubmitActivity),
		unary(MethodListActivities, EcoQuestServer.ListActivities),
		unary(MethodTodayActivities, EcoQuestServer.TodayActivities),
		unary(MethodLeaderboard, EcoQuestServer.Leaderboard),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterEcoQuestServer registers srv on s.
func RegisterEcoQuestServer(s grpc.ServiceRegistrar, srv EcoQuestServer) {
	s.RegisterService(&ServiceDesc, srv)
}
