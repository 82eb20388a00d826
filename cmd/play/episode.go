package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/grpc/envserver"
)

// environment is what the demo loop drives: a local engine or a remote one
type environment interface {
	Reset(ctx context.Context) (game.Observation, error)
	Step(ctx context.Context, a core.Action) (obs game.Observation, reward float64, terminated bool, err error)
	Render() string
	Close(ctx context.Context) error
}

type localEnv struct {
	engine *game.Engine
	seed   *int64
	color  bool
}

func (l *localEnv) Reset(context.Context) (game.Observation, error) {
	if l.seed != nil {
		return l.engine.ResetWithSeed(*l.seed), nil
	}
	return l.engine.Reset(), nil
}

func (l *localEnv) Step(_ context.Context, a core.Action) (game.Observation, float64, bool, error) {
	res, err := l.engine.Step(a)
	return res.Observation, res.Reward, res.Terminated, err
}

func (l *localEnv) Render() string {
	if l.color {
		return l.engine.RenderColor()
	}
	return l.engine.Render()
}

func (l *localEnv) Close(context.Context) error { return nil }

type remoteEnv struct {
	client *envserver.Client
	envID  string
	size   int
	seed   *int64
	obs    game.Observation
}

func (r *remoteEnv) Reset(ctx context.Context) (game.Observation, error) {
	if r.envID == "" {
		resp, err := r.client.CreateEnvironment(ctx, envserver.CreateEnvironmentRequest{Size: r.size, Seed: r.seed})
		if err != nil {
			return nil, fmt.Errorf("create environment: %w", err)
		}
		r.envID = resp.EnvID
		r.obs = resp.Observation
		return r.obs, nil
	}
	resp, err := r.client.Reset(ctx, envserver.ResetRequest{EnvID: r.envID, Seed: r.seed})
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	r.obs = resp.Observation
	return r.obs, nil
}

func (r *remoteEnv) Step(ctx context.Context, a core.Action) (game.Observation, float64, bool, error) {
	resp, err := r.client.Step(ctx, envserver.StepRequest{EnvID: r.envID, Action: int(a)})
	if err != nil {
		return nil, 0, false, err
	}
	r.obs = resp.Observation
	return resp.Observation, resp.Reward, resp.Terminated, nil
}

func (r *remoteEnv) Render() string { return game.Render(r.obs) }

func (r *remoteEnv) Close(ctx context.Context) error {
	if r.envID == "" {
		return nil
	}
	return r.client.CloseEnvironment(ctx, envserver.CloseEnvironmentRequest{EnvID: r.envID})
}

type episodeOptions struct {
	maxSteps int
	render   bool
	fps      float64
}

type episodeResult struct {
	steps       int
	totalReward float64
	terminated  bool
}

// runEpisode resets env and plays policy until termination or maxSteps.
// Truncation at maxSteps is the caller's limit, not a terminal state.
func runEpisode(ctx context.Context, env environment, policy game.Policy, opts episodeOptions, out io.Writer) (episodeResult, error) {
	obs, err := env.Reset(ctx)
	if err != nil {
		return episodeResult{}, err
	}

	var delay time.Duration
	if opts.fps > 0 {
		delay = time.Duration(float64(time.Second) / opts.fps)
	}

	var res episodeResult
	for t := 0; t < opts.maxSteps; t++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		action := policy(obs)
		next, reward, terminated, err := env.Step(ctx, action)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", t, err)
		}
		obs = next
		res.steps++
		res.totalReward += reward
		res.terminated = terminated

		if opts.render {
			fmt.Fprintf(out, "Step %d, action=%d, reward=%g, terminated=%t\n", t, int(action), reward, terminated)
			fmt.Fprintln(out, env.Render())
			fmt.Fprintln(out, strings.Repeat("-", 30))
			if delay > 0 {
				select {
				case <-ctx.Done():
					return res, ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		if terminated {
			break
		}
	}

	fmt.Fprintf(out, "Episode finished, total reward: %g\n", res.totalReward)
	return res, nil
}
