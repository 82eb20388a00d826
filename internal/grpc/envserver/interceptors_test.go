package envserver

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryRecoveryInterceptor(t *testing.T) {
	intercept := UnaryRecoveryInterceptor(zerolog.Nop())
	info := &grpc.UnaryServerInfo{FullMethod: StepMethod}

	_, err := intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestUnaryLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	intercept := UnaryLoggingInterceptor(zerolog.New(&buf).Level(zerolog.InfoLevel))

	_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: StepMethod},
		func(context.Context, interface{}) (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "successful steps log at debug")

	_, err = intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: StepMethod},
		func(context.Context, interface{}) (interface{}, error) {
			return nil, status.Error(codes.NotFound, "gone")
		})
	assert.Error(t, err)
	assert.Contains(t, buf.String(), `"code":"NotFound"`)

	buf.Reset()
	_, err = intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: CreateEnvironmentMethod},
		func(context.Context, interface{}) (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Contains(t, buf.String(), CreateEnvironmentMethod)
}

func TestStreamRecoveryInterceptor(t *testing.T) {
	intercept := StreamRecoveryInterceptor(zerolog.Nop())
	err := intercept(nil, nil, &grpc.StreamServerInfo{FullMethod: WatchEnvironmentMethod},
		func(interface{}, grpc.ServerStream) error { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}
