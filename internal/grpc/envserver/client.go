package envserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client for the environment service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection to an environment server
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

type structEncoder interface {
	ToStruct() (*structpb.Struct, error)
}

func (c *Client) invoke(ctx context.Context, method string, req structEncoder, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := req.ToStruct()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEnvironment(ctx context.Context, req CreateEnvironmentRequest, opts ...grpc.CallOption) (CreateEnvironmentResponse, error) {
	out, err := c.invoke(ctx, CreateEnvironmentMethod, req, opts...)
	if err != nil {
		return CreateEnvironmentResponse{}, err
	}
	return ParseCreateEnvironmentResponse(out)
}

func (c *Client) Reset(ctx context.Context, req ResetRequest, opts ...grpc.CallOption) (ResetResponse, error) {
	out, err := c.invoke(ctx, ResetMethod, req, opts...)
	if err != nil {
		return ResetResponse{}, err
	}
	return ParseResetResponse(out)
}

func (c *Client) Step(ctx context.Context, req StepRequest, opts ...grpc.CallOption) (StepResponse, error) {
	out, err := c.invoke(ctx, StepMethod, req, opts...)
	if err != nil {
		return StepResponse{}, err
	}
	return ParseStepResponse(out)
}

func (c *Client) GetState(ctx context.Context, req GetStateRequest, opts ...grpc.CallOption) (GetStateResponse, error) {
	out, err := c.invoke(ctx, GetStateMethod, req, opts...)
	if err != nil {
		return GetStateResponse{}, err
	}
	return ParseGetStateResponse(out)
}

func (c *Client) CloseEnvironment(ctx context.Context, req CloseEnvironmentRequest, opts ...grpc.CallOption) error {
	_, err := c.invoke(ctx, CloseEnvironmentMethod, req, opts...)
	return err
}

func (c *Client) SampleExperience(ctx context.Context, req SampleExperienceRequest, opts ...grpc.CallOption) (SampleExperienceResponse, error) {
	out, err := c.invoke(ctx, SampleExperienceMethod, req, opts...)
	if err != nil {
		return SampleExperienceResponse{}, err
	}
	return ParseSampleExperienceResponse(out)
}

// WatchStream receives updates from WatchEnvironment
type WatchStream struct {
	stream grpc.ClientStream
}

// Recv returns the next update. io.EOF means the server closed the stream.
func (w *WatchStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := w.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WatchEnvironment opens an update stream for an environment
func (c *Client) WatchEnvironment(ctx context.Context, req WatchEnvironmentRequest, opts ...grpc.CallOption) (*WatchStream, error) {
	in, err := req.ToStruct()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	stream, err := c.cc.NewStream(ctx, &EnvironmentService_ServiceDesc.Streams[0], WatchEnvironmentMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream: stream}, nil
}
