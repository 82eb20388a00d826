package envserver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Server implements EnvironmentServiceServer on top of an EnvManager
type Server struct {
	manager    *EnvManager
	serializer *experience.Serializer
	logger     zerolog.Logger
}

var _ EnvironmentServiceServer = (*Server)(nil)

// NewServer creates a new environment server
func NewServer(manager *EnvManager, logger zerolog.Logger) *Server {
	return &Server{
		manager:    manager,
		serializer: experience.NewSerializer(),
		logger:     logger.With().Str("component", "env_server").Logger(),
	}
}

// Manager returns the environment manager backing the server
func (s *Server) Manager() *EnvManager {
	return s.manager
}

// withEnv runs fn with the environment locked
func (s *Server) withEnv(id string, fn func(env *envInstance) error) error {
	env, err := s.manager.Get(id)
	if err != nil {
		return err
	}
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.engine == nil {
		return fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	env.touchLocked()
	return fn(env)
}

// CreateEnvironment creates an environment and returns its first observation
func (s *Server) CreateEnvironment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseCreateEnvironmentRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}

	env, err := s.manager.Create(req.Size, req.Seed)
	if err != nil {
		return nil, toStatus(err)
	}

	var resp CreateEnvironmentResponse
	err = s.withEnv(env.id, func(env *envInstance) error {
		resp = CreateEnvironmentResponse{
			EnvID:        env.id,
			Observation:  env.engine.Observation(),
			LegalActions: env.engine.LegalActions(),
		}
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp.ToStruct()
}

// Reset starts a new episode, reseeding when a seed is supplied
func (s *Server) Reset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseResetRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}

	var resp ResetResponse
	err = s.withEnv(req.EnvID, func(env *envInstance) error {
		if req.Seed != nil {
			env.engine.ResetWithSeed(*req.Seed)
		} else {
			env.engine.Reset()
		}
		env.idempotency.Clear()
		resp = ResetResponse{
			Observation:  env.engine.Observation(),
			LegalActions: env.engine.LegalActions(),
			Episode:      env.engine.Episode(),
		}
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp.ToStruct()
}

// Step applies one action. Requests carrying an idempotency key already
// seen this episode return the cached response without stepping.
func (s *Server) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseStepRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}

	var out *structpb.Struct
	err = s.withEnv(req.EnvID, func(env *envInstance) error {
		if cached := env.idempotency.Check(req.IdempotencyKey); cached != nil {
			s.logger.Debug().
				Str("env_id", env.id).
				Str("idempotency_key", req.IdempotencyKey).
				Msg("Returning cached step response")
			out = cached
			return nil
		}

		result, err := env.engine.Step(core.Action(req.Action))
		if err != nil {
			return err
		}
		resp := StepResponse{
			Observation:  result.Observation,
			Reward:       result.Reward,
			Terminated:   result.Terminated,
			Changed:      result.Changed,
			Score:        env.engine.Score(),
			LegalActions: env.engine.LegalActions(),
		}
		out, err = resp.ToStruct()
		if err != nil {
			return err
		}
		env.idempotency.Store(req.IdempotencyKey, out)
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// GetState returns the current observation and episode counters
func (s *Server) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseGetStateRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}

	var resp GetStateResponse
	err = s.withEnv(req.EnvID, func(env *envInstance) error {
		resp = env.stateLocked()
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp.ToStruct()
}

// CloseEnvironment removes an environment and ends its watch streams
func (s *Server) CloseEnvironment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseCloseEnvironmentRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.manager.Remove(req.EnvID); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

// SampleExperience returns transitions from the environment's replay buffer
func (s *Server) SampleExperience(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseSampleExperienceRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	transitions, err := s.manager.Sample(req.EnvID, req.N, req.Seed)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := SampleExperienceResponse{Transitions: transitions}
	if req.Tensors {
		resp.Tensors, resp.TensorShape = s.encodeTensors(transitions)
	}
	return resp.ToStruct()
}

// encodeTensors turns sampled transitions into one-hot board tensors and
// float action masks.
func (s *Server) encodeTensors(transitions []experience.Transition) ([]TransitionTensors, []int32) {
	if len(transitions) == 0 {
		return nil, nil
	}
	states := make([]game.Observation, len(transitions))
	next := make([]game.Observation, len(transitions))
	for i, t := range transitions {
		states[i], next[i] = t.State, t.NextState
	}
	stateTensors := s.serializer.BatchBoardToTensor(states)
	nextTensors := s.serializer.BatchBoardToTensor(next)

	out := make([]TransitionTensors, len(transitions))
	for i, t := range transitions {
		out[i] = TransitionTensors{
			State:      stateTensors[i],
			NextState:  nextTensors[i],
			ActionMask: s.serializer.ActionMaskToFloat(t.ActionMask),
			Features:   s.serializer.ExtractFeatures(t.NextState),
		}
	}
	return out, s.serializer.GetTensorShape(transitions[0].State.Size())
}

// WatchEnvironment streams a snapshot followed by every engine event until
// the client disconnects or the environment is closed.
func (s *Server) WatchEnvironment(in *structpb.Struct, stream EnvironmentService_WatchEnvironmentServer) error {
	req, err := ParseWatchEnvironmentRequest(in)
	if err != nil {
		return toStatus(err)
	}
	env, err := s.manager.Get(req.EnvID)
	if err != nil {
		return toStatus(err)
	}

	// Register before taking the snapshot so no event between the two is lost
	client := env.streams.RegisterClient()
	defer env.streams.UnregisterClient(client.ID())

	var snapshot *structpb.Struct
	err = s.withEnv(req.EnvID, func(env *envInstance) error {
		snapshot, err = snapshotStruct(env.stateLocked())
		return err
	})
	if err != nil {
		return toStatus(err)
	}
	if err := stream.Send(snapshot); err != nil {
		return err
	}

	s.logger.Debug().Str("env_id", req.EnvID).Str("stream_id", client.ID()).Msg("Watch stream opened")
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case update, ok := <-client.Updates():
			if !ok {
				return nil
			}
			if err := stream.Send(update); err != nil {
				return err
			}
		}
	}
}
