package envserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages whose fields are described
// by the typed wrappers in messages.go.
const ServiceName = "game2048.v1.EnvironmentService"

const (
	CreateEnvironmentMethod = "/" + ServiceName + "/CreateEnvironment"
	ResetMethod             = "/" + ServiceName + "/Reset"
	StepMethod              = "/" + ServiceName + "/Step"
	GetStateMethod          = "/" + ServiceName + "/GetState"
	CloseEnvironmentMethod  = "/" + ServiceName + "/CloseEnvironment"
	SampleExperienceMethod  = "/" + ServiceName + "/SampleExperience"
	WatchEnvironmentMethod  = "/" + ServiceName + "/WatchEnvironment"
)

// EnvironmentServiceServer is the server API for the environment service
type EnvironmentServiceServer interface {
	CreateEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SampleExperience(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEnvironment(*structpb.Struct, EnvironmentService_WatchEnvironmentServer) error
}

// EnvironmentService_WatchEnvironmentServer is the server side of the
// WatchEnvironment stream
type EnvironmentService_WatchEnvironmentServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchEnvironmentServer struct {
	grpc.ServerStream
}

func (x *watchEnvironmentServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type unaryCall func(EnvironmentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(EnvironmentServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEnvironmentHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EnvironmentServiceServer).WatchEnvironment(m, &watchEnvironmentServer{stream})
}

// EnvironmentService_ServiceDesc is the grpc.ServiceDesc for the environment service
var EnvironmentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateEnvironment", Handler: unaryHandler(CreateEnvironmentMethod, EnvironmentServiceServer.CreateEnvironment)},
		{MethodName: "Reset", Handler: unaryHandler(ResetMethod, EnvironmentServiceServer.Reset)},
		{MethodName: "Step", Handler: unaryHandler(StepMethod, EnvironmentServiceServer.Step)},
		{MethodName: "GetState", Handler: unaryHandler(GetStateMethod, EnvironmentServiceServer.GetState)},
		{MethodName: "CloseEnvironment", Handler: unaryHandler(CloseEnvironmentMethod, EnvironmentServiceServer.CloseEnvironment)},
		{MethodName: "SampleExperience", Handler: unaryHandler(SampleExperienceMethod, EnvironmentServiceServer.SampleExperience)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEnvironment",
			Handler:       watchEnvironmentHandler,
			ServerStreams: true,
		},
	},
	Metadata: "game2048/v1/environment.proto",
}

// RegisterEnvironmentServiceServer registers srv on s
func RegisterEnvironmentServiceServer(s grpc.ServiceRegistrar, srv EnvironmentServiceServer) {
	s.RegisterService(&EnvironmentService_ServiceDesc, srv)
}
