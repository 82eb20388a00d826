package envserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
)

type recordingStore struct {
	mu       sync.Mutex
	batches  [][]experience.Transition
	closed   bool
	writeErr error
}

func (s *recordingStore) Write(ctx context.Context, ts []experience.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.batches = append(s.batches, ts)
	return nil
}

func (s *recordingStore) Read(ctx context.Context, envID string, limit int) ([]experience.Transition, error) {
	return nil, nil
}

func (s *recordingStore) Delete(ctx context.Context, envID string) error { return nil }

func (s *recordingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingStore) Stats() experience.PersistenceStats { return experience.PersistenceStats{} }

func (s *recordingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestExperiencePipeline_BatchesAndFlushesOnClose(t *testing.T) {
	store := &recordingStore{}
	p := NewExperiencePipeline(store, 4, time.Hour, zerolog.Nop())
	p.Start()

	for i := 0; i < 10; i++ {
		p.Sink(experience.Transition{ID: string(rune('a' + i)), EnvID: "env"})
	}
	assert.Eventually(t, func() bool { return store.total() == 8 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close())
	assert.Equal(t, 10, store.total(), "close flushes the partial batch")
	assert.True(t, store.closed)

	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Queued)
	assert.Equal(t, int64(10), stats.Written)

	p.Sink(experience.Transition{ID: "late"})
	assert.Equal(t, int64(1), p.Stats().Dropped)
	assert.NoError(t, p.Close())
}

func TestExperiencePipeline_FlushesOnInterval(t *testing.T) {
	store := &recordingStore{}
	p := NewExperiencePipeline(store, 100, 10*time.Millisecond, zerolog.Nop())
	p.Start()
	defer p.Close()

	p.Sink(experience.Transition{ID: "one"})
	assert.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestExperiencePipeline_CountsFailedWrites(t *testing.T) {
	store := &recordingStore{writeErr: errors.New("disk full")}
	p := NewExperiencePipeline(store, 2, time.Hour, zerolog.Nop())
	p.Start()

	p.Sink(experience.Transition{ID: "a"})
	p.Sink(experience.Transition{ID: "b"})
	require.NoError(t, p.Close())
	assert.Equal(t, int64(2), p.Stats().Failed)
	assert.Equal(t, int64(0), p.Stats().Written)
}

func TestExperiencePipeline_FeedsFromEnvironments(t *testing.T) {
	store := &recordingStore{}
	p := NewExperiencePipeline(store, 1000, time.Hour, zerolog.Nop())
	p.Start()

	m := NewEnvManager(ManagerConfig{ExperienceEnabled: true, Sink: p.Sink}, zerolog.Nop())
	env, err := m.Create(0, nil)
	require.NoError(t, err)

	env.mu.Lock()
	_, err = env.engine.Step(0)
	require.NoError(t, err)
	_, err = env.engine.Step(1)
	require.NoError(t, err)
	env.mu.Unlock()

	m.Stop()
	require.NoError(t, p.Close())
	assert.Equal(t, 2, store.total())
}
