package experience

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrBufferFull is returned by collectors that refuse to overwrite
	ErrBufferFull = errors.New("experience buffer is full")
	// ErrBufferClosed is returned when operations are attempted on a closed buffer
	ErrBufferClosed = errors.New("experience buffer is closed")
)

const defaultBufferCapacity = 10000

// Buffer is a thread-safe ring buffer of transitions. When full, Add
// overwrites the oldest entry.
type Buffer struct {
	mu       sync.RWMutex
	buffer   []Transition
	capacity int
	size     int
	head     int // Write position
	tail     int // Read position
	closed   bool

	totalAdded   int64
	totalDropped int64

	logger zerolog.Logger
}

// NewBuffer creates a new experience buffer with the specified capacity
func NewBuffer(capacity int, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}

	return &Buffer{
		buffer:   make([]Transition, capacity),
		capacity: capacity,
		logger:   logger.With().Str("component", "experience_buffer").Logger(),
	}
}

// Add adds a transition to the buffer
func (b *Buffer) Add(t Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	b.addLocked(t)
	return nil
}

// AddBatch adds multiple transitions under one lock
func (b *Buffer) AddBatch(ts []Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	for _, t := range ts {
		b.addLocked(t)
	}

	if len(ts) > 0 {
		b.logger.Debug().
			Int("batch_size", len(ts)).
			Int64("total_added", b.totalAdded).
			Msg("Added batch of transitions")
	}
	return nil
}

func (b *Buffer) addLocked(t Transition) {
	if b.size >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.totalDropped++
	} else {
		b.size++
	}

	b.buffer[b.head] = t
	b.head = (b.head + 1) % b.capacity
	b.totalAdded++
}

// Get removes and returns up to n of the oldest transitions
func (b *Buffer) Get(n int) []Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getLocked(n)
}

// Drain removes and returns every transition, oldest first
func (b *Buffer) Drain() []Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getLocked(b.size)
}

func (b *Buffer) getLocked(n int) []Transition {
	if n > b.size {
		n = b.size
	}

	result := make([]Transition, n)
	for i := 0; i < n; i++ {
		result[i] = b.buffer[b.tail]
		b.buffer[b.tail] = Transition{}
		b.tail = (b.tail + 1) % b.capacity
		b.size--
	}
	return result
}

// Sample returns up to n distinct transitions chosen uniformly at random
// without removing them.
func (b *Buffer) Sample(n int, rng *rand.Rand) []Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}

	perm := rng.Perm(b.size)
	result := make([]Transition, n)
	for i := 0; i < n; i++ {
		result[i] = b.buffer[(b.tail+perm[i])%b.capacity]
	}
	return result
}

// Latest returns the n most recent transitions, oldest first
func (b *Buffer) Latest(n int) []Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}

	result := make([]Transition, n)
	for i := 0; i < n; i++ {
		idx := (b.head - n + i + b.capacity) % b.capacity
		result[i] = b.buffer[idx]
	}
	return result
}

// Size returns the current number of transitions in the buffer
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum capacity of the buffer
func (b *Buffer) Capacity() int {
	return b.capacity
}

// IsFull returns true if the buffer is at capacity
func (b *Buffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size >= b.capacity
}

// Clear removes all transitions from the buffer
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.size = 0
	b.head = 0
	b.tail = 0
	b.buffer = make([]Transition, b.capacity)

	b.logger.Debug().Msg("Buffer cleared")
}

// Close marks the buffer closed; later Adds fail with ErrBufferClosed
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.logger.Debug().
		Int64("total_added", b.totalAdded).
		Int64("total_dropped", b.totalDropped).
		Msg("Buffer closed")
	return nil
}

// Stats returns buffer statistics
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		CurrentSize:    b.size,
		Capacity:       b.capacity,
		TotalAdded:     b.totalAdded,
		TotalDropped:   b.totalDropped,
		UtilizationPct: float64(b.size) / float64(b.capacity) * 100,
	}
}

// BufferStats contains buffer statistics
type BufferStats struct {
	CurrentSize    int
	Capacity       int
	TotalAdded     int64
	TotalDropped   int64
	UtilizationPct float64
}

// BufferManager keys one buffer per environment
type BufferManager struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
	logger  zerolog.Logger

	defaultCapacity int
}

// NewBufferManager creates a new buffer manager
func NewBufferManager(defaultCapacity int, logger zerolog.Logger) *BufferManager {
	return &BufferManager{
		buffers:         make(map[string]*Buffer),
		defaultCapacity: defaultCapacity,
		logger:          logger.With().Str("component", "buffer_manager").Logger(),
	}
}

// GetOrCreateBuffer gets an existing buffer or creates a new one
func (m *BufferManager) GetOrCreateBuffer(key string) *Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buffer, exists := m.buffers[key]; exists {
		return buffer
	}

	buffer := NewBuffer(m.defaultCapacity, m.logger)
	m.buffers[key] = buffer

	m.logger.Debug().
		Str("key", key).
		Int("capacity", buffer.Capacity()).
		Msg("Created new buffer")

	return buffer
}

// GetBuffer retrieves a buffer by key
func (m *BufferManager) GetBuffer(key string) (*Buffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buffer, exists := m.buffers[key]
	return buffer, exists
}

// RemoveBuffer removes and closes a buffer
func (m *BufferManager) RemoveBuffer(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buffer, exists := m.buffers[key]; exists {
		if err := buffer.Close(); err != nil {
			return err
		}
		delete(m.buffers, key)
		m.logger.Debug().Str("key", key).Msg("Removed buffer")
	}
	return nil
}

// Count returns the number of managed buffers
func (m *BufferManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buffers)
}

// CloseAll closes all managed buffers
func (m *BufferManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, buffer := range m.buffers {
		if err := buffer.Close(); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to close buffer")
		}
	}
	m.buffers = make(map[string]*Buffer)
	return nil
}

// TimedBatcher groups transitions from input into batches of batchSize,
// flushing a partial batch when timeout passes without one filling up.
type TimedBatcher struct {
	input     <-chan Transition
	output    chan []Transition
	batchSize int
	timeout   time.Duration
	closeChan chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewTimedBatcher creates a new timed batcher
func NewTimedBatcher(input <-chan Transition, batchSize int, timeout time.Duration, logger zerolog.Logger) *TimedBatcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &TimedBatcher{
		input:     input,
		output:    make(chan []Transition, 10),
		batchSize: batchSize,
		timeout:   timeout,
		closeChan: make(chan struct{}),
		logger:    logger.With().Str("component", "timed_batcher").Logger(),
	}
}

// Start begins batching
func (b *TimedBatcher) Start() {
	go b.run()
}

func (b *TimedBatcher) run() {
	batch := make([]Transition, 0, b.batchSize)
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) > 0 {
			b.output <- batch
			batch = make([]Transition, 0, b.batchSize)
		}
	}

	for {
		select {
		case t, ok := <-b.input:
			if !ok {
				flush()
				close(b.output)
				return
			}
			batch = append(batch, t)
			if len(batch) >= b.batchSize {
				flush()
				timer.Reset(b.timeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(b.timeout)

		case <-b.closeChan:
			flush()
			close(b.output)
			return
		}
	}
}

// Output returns the batched output channel
func (b *TimedBatcher) Output() <-chan []Transition {
	return b.output
}

// Close stops the batcher after flushing what it holds
func (b *TimedBatcher) Close() {
	b.closeOnce.Do(func() { close(b.closeChan) })
}
