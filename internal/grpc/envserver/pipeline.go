package envserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
)

const (
	defaultPipelineBatchSize = 100
	defaultPipelineFlush     = time.Second
	pipelineQueueSize        = 4096
	pipelineWriteTimeout     = 10 * time.Second
)

// ExperiencePipeline batches transitions from every environment into one
// persistence layer. Sink never blocks; a full queue drops the transition.
type ExperiencePipeline struct {
	input   chan experience.Transition
	batcher *experience.TimedBatcher
	store   experience.PersistenceLayer
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	queued  atomic.Int64
	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// PipelineStats reports pipeline throughput
type PipelineStats struct {
	Queued  int64
	Written int64
	Dropped int64
	Failed  int64
}

// NewExperiencePipeline creates a pipeline writing to store
func NewExperiencePipeline(store experience.PersistenceLayer, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *ExperiencePipeline {
	if batchSize <= 0 {
		batchSize = defaultPipelineBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultPipelineFlush
	}
	input := make(chan experience.Transition, pipelineQueueSize)
	logger = logger.With().Str("component", "experience_pipeline").Logger()
	return &ExperiencePipeline{
		input:   input,
		batcher: experience.NewTimedBatcher(input, batchSize, flushInterval, logger),
		store:   store,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start begins draining batches into the store
func (p *ExperiencePipeline) Start() {
	p.batcher.Start()
	go p.run()
	p.logger.Info().Msg("Experience pipeline started")
}

// Sink queues t for persistence. It matches experience.SinkFunc.
func (p *ExperiencePipeline) Sink(t experience.Transition) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.input <- t:
		p.queued.Add(1)
	default:
		p.dropped.Add(1)
		p.logger.Warn().Str("env_id", t.EnvID).Msg("Experience queue full, dropping transition")
	}
}

func (p *ExperiencePipeline) run() {
	defer close(p.done)
	for batch := range p.batcher.Output() {
		ctx, cancel := context.WithTimeout(context.Background(), pipelineWriteTimeout)
		err := p.store.Write(ctx, batch)
		cancel()
		if err != nil {
			p.failed.Add(int64(len(batch)))
			p.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to persist experience batch")
			continue
		}
		p.written.Add(int64(len(batch)))
		p.logger.Debug().Int("batch_size", len(batch)).Msg("Persisted experience batch")
	}
}

// Close flushes queued transitions, waits for the last write and closes
// the store. It is safe to call more than once.
func (p *ExperiencePipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.input)
	p.mu.Unlock()

	<-p.done
	stats := p.Stats()
	p.logger.Info().
		Int64("written", stats.Written).
		Int64("dropped", stats.Dropped).
		Int64("failed", stats.Failed).
		Msg("Experience pipeline stopped")
	return p.store.Close()
}

// Stats returns a snapshot of the pipeline counters
func (p *ExperiencePipeline) Stats() PipelineStats {
	return PipelineStats{
		Queued:  p.queued.Load(),
		Written: p.written.Load(),
		Dropped: p.dropped.Load(),
		Failed:  p.failed.Load(),
	}
}
