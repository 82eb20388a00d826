package envserver

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/testutil"
)

const bufSize = 1024 * 1024

// setupTestServer creates an in-memory gRPC server for testing
func setupTestServer(t *testing.T, cfg ManagerConfig) (*Client, *EnvManager) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(ServerOptions(zerolog.Nop())...)
	manager := NewEnvManager(cfg, zerolog.Nop())
	RegisterEnvironmentServiceServer(s, NewServer(manager, zerolog.Nop()))

	go func() {
		if err := s.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
		manager.Stop()
		lis.Close()
	})
	return NewClient(conn), manager
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected gRPC status, got %v", err)
	assert.Equal(t, code, st.Code(), st.Message())
}

func TestCreateEnvironment(t *testing.T) {
	client, manager := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	resp, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EnvID)
	require.Len(t, resp.Observation, 4)

	tiles := 0
	for _, row := range resp.Observation {
		for _, v := range row {
			if v != 0 {
				tiles++
				assert.Contains(t, []int{2, 4}, v)
			}
		}
	}
	assert.Equal(t, 2, tiles)
	assert.Equal(t, 1, manager.Count())

	resp2, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Size: 6})
	require.NoError(t, err)
	assert.NotEqual(t, resp.EnvID, resp2.EnvID)
	assert.Len(t, resp2.Observation, 6)
}

func TestCreateEnvironment_InvalidSize(t *testing.T) {
	client, manager := setupTestServer(t, ManagerConfig{})

	_, err := client.CreateEnvironment(context.Background(), CreateEnvironmentRequest{Size: 1})
	requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, 0, manager.Count(), "failed creates must not hold a slot")
}

func TestCreateEnvironment_OversizedBoard(t *testing.T) {
	client, manager := setupTestServer(t, ManagerConfig{MaxEnvs: 1})
	ctx := context.Background()

	_, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Size: 1 << 31})
	requireCode(t, err, codes.InvalidArgument)
	assert.Equal(t, 0, manager.Count())

	_, err = client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	assert.NoError(t, err, "a rejected size must not use up the only slot")
}

func TestCreateEnvironment_SeedIsReproducible(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	a, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(42)})
	require.NoError(t, err)
	b, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(42)})
	require.NoError(t, err)
	assert.Equal(t, a.Observation, b.Observation)

	for _, action := range []int{2, 0, 3, 1} {
		ra, err := client.Step(ctx, StepRequest{EnvID: a.EnvID, Action: action})
		require.NoError(t, err)
		rb, err := client.Step(ctx, StepRequest{EnvID: b.EnvID, Action: action})
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}

func TestCreateEnvironment_Capacity(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{MaxEnvs: 2})
	ctx := context.Background()

	first, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)
	_, err = client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)

	_, err = client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	requireCode(t, err, codes.ResourceExhausted)

	require.NoError(t, client.CloseEnvironment(ctx, CloseEnvironmentRequest{EnvID: first.EnvID}))
	_, err = client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	assert.NoError(t, err, "closing an environment frees its slot")
}

func TestStep(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(7)})
	require.NoError(t, err)

	var total float64
	for i := 0; i < 20; i++ {
		resp, err := client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: i % core.NumActions})
		require.NoError(t, err)
		total += resp.Reward
		assert.Equal(t, int(total), resp.Score)
		if !resp.Changed {
			assert.Zero(t, resp.Reward)
		}
		if resp.Terminated {
			assert.Equal(t, [core.NumActions]bool{}, resp.LegalActions)
			break
		}
	}

	state, err := client.GetState(ctx, GetStateRequest{EnvID: created.EnvID})
	require.NoError(t, err)
	assert.Equal(t, int(total), state.Score)
	assert.Equal(t, created.EnvID, state.EnvID)
	assert.Equal(t, 1, state.Episode)
	assert.NotEmpty(t, state.Render)
}

func TestStep_Errors(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)

	_, err = client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: 4})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: -1})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Step(ctx, StepRequest{EnvID: "missing", Action: 0})
	requireCode(t, err, codes.NotFound)

	_, err = client.Step(ctx, StepRequest{Action: 0})
	requireCode(t, err, codes.InvalidArgument)

	state, err := client.GetState(ctx, GetStateRequest{EnvID: created.EnvID})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Steps, "rejected actions do not count as steps")
	assert.Equal(t, created.Observation, state.Observation)
}

func TestStep_Idempotency(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(3)})
	require.NoError(t, err)

	req := StepRequest{EnvID: created.EnvID, Action: int(core.ActionLeft), IdempotencyKey: "step-1"}
	first, err := client.Step(ctx, req)
	require.NoError(t, err)
	retry, err := client.Step(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, retry)

	state, err := client.GetState(ctx, GetStateRequest{EnvID: created.EnvID})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Steps)

	_, err = client.Reset(ctx, ResetRequest{EnvID: created.EnvID})
	require.NoError(t, err)
	_, err = client.Step(ctx, req)
	require.NoError(t, err)
	state, err = client.GetState(ctx, GetStateRequest{EnvID: created.EnvID})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Steps, "reset clears cached keys")
	assert.Equal(t, 2, state.Episode)
}

func TestReset_WithSeed(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(42)})
	require.NoError(t, err)
	_, err = client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: 0})
	require.NoError(t, err)

	reset, err := client.Reset(ctx, ResetRequest{EnvID: created.EnvID, Seed: testutil.Int64Ptr(42)})
	require.NoError(t, err)
	assert.Equal(t, created.Observation, reset.Observation)
	assert.Equal(t, created.LegalActions, reset.LegalActions)
	assert.Equal(t, 2, reset.Episode)

	_, err = client.Reset(ctx, ResetRequest{EnvID: "missing"})
	requireCode(t, err, codes.NotFound)
}

func TestCloseEnvironment(t *testing.T) {
	client, manager := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)
	require.NoError(t, client.CloseEnvironment(ctx, CloseEnvironmentRequest{EnvID: created.EnvID}))
	assert.Equal(t, 0, manager.Count())

	_, err = client.GetState(ctx, GetStateRequest{EnvID: created.EnvID})
	requireCode(t, err, codes.NotFound)

	err = client.CloseEnvironment(ctx, CloseEnvironmentRequest{EnvID: created.EnvID})
	requireCode(t, err, codes.NotFound)
}

func TestSampleExperience(t *testing.T) {
	var sunk atomic.Int64
	client, _ := setupTestServer(t, ManagerConfig{
		ExperienceEnabled: true,
		BufferCapacity:    100,
		Sink:              func(experience.Transition) { sunk.Add(1) },
	})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(5)})
	require.NoError(t, err)

	steps := 0
	for i := 0; i < 6; i++ {
		resp, err := client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: i % core.NumActions})
		require.NoError(t, err)
		steps++
		if resp.Terminated {
			break
		}
	}
	assert.Equal(t, int64(steps), sunk.Load())

	sample, err := client.SampleExperience(ctx, SampleExperienceRequest{EnvID: created.EnvID, N: 3, Seed: testutil.Int64Ptr(1)})
	require.NoError(t, err)
	require.Len(t, sample.Transitions, 3)
	seen := map[string]bool{}
	for _, tr := range sample.Transitions {
		assert.Equal(t, created.EnvID, tr.EnvID)
		assert.False(t, seen[tr.ID], "sampling is without replacement")
		seen[tr.ID] = true
	}

	all, err := client.SampleExperience(ctx, SampleExperienceRequest{EnvID: created.EnvID, N: 100})
	require.NoError(t, err)
	assert.Len(t, all.Transitions, steps)
}

func TestSampleExperience_Tensors(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{ExperienceEnabled: true, BufferCapacity: 100})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(9)})
	require.NoError(t, err)
	for _, action := range []int{2, 0, 3} {
		_, err := client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: action})
		require.NoError(t, err)
	}

	plain, err := client.SampleExperience(ctx, SampleExperienceRequest{EnvID: created.EnvID, N: 2})
	require.NoError(t, err)
	assert.Empty(t, plain.Tensors)

	sample, err := client.SampleExperience(ctx, SampleExperienceRequest{EnvID: created.EnvID, N: 2, Tensors: true})
	require.NoError(t, err)
	require.Len(t, sample.Transitions, 2)
	require.Len(t, sample.Tensors, 2)
	assert.Equal(t, []int32{experience.NumChannels, 4, 4}, sample.TensorShape)

	serializer := experience.NewSerializer()
	for i, tr := range sample.Transitions {
		tensors := sample.Tensors[i]
		assert.Equal(t, serializer.BoardToTensor(tr.State), tensors.State)
		assert.Equal(t, serializer.BoardToTensor(tr.NextState), tensors.NextState)
		assert.Equal(t, serializer.ActionMaskToFloat(tr.ActionMask), tensors.ActionMask)
		assert.Equal(t, float32(tr.NextState.MaxTile()), tensors.Features["max_tile"])
	}
}

func TestSampleExperience_Disabled(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx := context.Background()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{})
	require.NoError(t, err)
	_, err = client.SampleExperience(ctx, SampleExperienceRequest{EnvID: created.EnvID, N: 1})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestWatchEnvironment(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := client.CreateEnvironment(ctx, CreateEnvironmentRequest{Seed: testutil.Int64Ptr(9)})
	require.NoError(t, err)

	stream, err := client.WatchEnvironment(ctx, WatchEnvironmentRequest{EnvID: created.EnvID})
	require.NoError(t, err)

	snapshot, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, UpdateTypeSnapshot, snapshot.GetFields()["type"].GetStringValue())
	state, err := ParseGetStateResponse(snapshot)
	require.NoError(t, err)
	assert.Equal(t, created.Observation, state.Observation)

	resp, err := client.Step(ctx, StepRequest{EnvID: created.EnvID, Action: int(core.ActionLeft)})
	require.NoError(t, err)

	moved, err := stream.Recv()
	require.NoError(t, err)
	f := moved.GetFields()
	assert.Equal(t, events.TypeMoveApplied, f["type"].GetStringValue())
	assert.Equal(t, float64(core.ActionLeft), f["action"].GetNumberValue())
	assert.Equal(t, resp.Reward, f["reward"].GetNumberValue())
	assert.Equal(t, resp.Changed, f["changed"].GetBoolValue())

	if resp.Changed {
		spawned, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, events.TypeTileSpawned, spawned.GetFields()["type"].GetStringValue())
	}

	require.NoError(t, client.CloseEnvironment(ctx, CloseEnvironmentRequest{EnvID: created.EnvID}))
	for {
		_, err = stream.Recv()
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, io.EOF, "closing the environment ends the stream")
}

func TestWatchEnvironment_NotFound(t *testing.T) {
	client, _ := setupTestServer(t, ManagerConfig{})

	stream, err := client.WatchEnvironment(context.Background(), WatchEnvironmentRequest{EnvID: "missing"})
	require.NoError(t, err)
	_, err = stream.Recv()
	requireCode(t, err, codes.NotFound)
}
