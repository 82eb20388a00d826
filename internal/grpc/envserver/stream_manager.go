package envserver

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

const streamBufferSize = 64

// StreamClient is one WatchEnvironment subscriber
type StreamClient struct {
	id         string
	updateChan chan *structpb.Struct
}

func (c *StreamClient) ID() string { return c.id }

// Updates delivers the client's updates until it is unregistered
func (c *StreamClient) Updates() <-chan *structpb.Struct { return c.updateChan }

// StreamManager fans environment updates out to watching clients. Sends
// never block the stepping goroutine: a full client channel drops the update.
type StreamManager struct {
	clients   map[string]*StreamClient
	clientsMu sync.RWMutex
	closed    bool
	logger    zerolog.Logger
}

// NewStreamManager creates a new stream manager
func NewStreamManager(logger zerolog.Logger) *StreamManager {
	return &StreamManager{
		clients: make(map[string]*StreamClient),
		logger:  logger,
	}
}

// RegisterClient adds a watcher. Its Updates channel is closed when the
// client is unregistered or the manager is closed.
func (sm *StreamManager) RegisterClient() *StreamClient {
	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	client := &StreamClient{
		id:         uuid.NewString(),
		updateChan: make(chan *structpb.Struct, streamBufferSize),
	}
	if sm.closed {
		close(client.updateChan)
		return client
	}
	sm.clients[client.id] = client

	sm.logger.Debug().
		Str("stream_id", client.id).
		Int("total_streams", len(sm.clients)).
		Msg("Stream client registered")
	return client
}

// UnregisterClient removes a watcher
func (sm *StreamManager) UnregisterClient(id string) {
	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	if client, exists := sm.clients[id]; exists {
		close(client.updateChan)
		delete(sm.clients, id)

		sm.logger.Debug().
			Str("stream_id", id).
			Int("remaining_streams", len(sm.clients)).
			Msg("Stream client unregistered")
	}
}

// BroadcastToAll sends an update to all connected clients
func (sm *StreamManager) BroadcastToAll(update *structpb.Struct) {
	sm.clientsMu.RLock()
	defer sm.clientsMu.RUnlock()

	for id, client := range sm.clients {
		select {
		case client.updateChan <- update:
		default:
			sm.logger.Warn().
				Str("stream_id", id).
				Msg("Stream update channel full, dropping update")
		}
	}
}

// GetClientCount returns the number of connected stream clients
func (sm *StreamManager) GetClientCount() int {
	sm.clientsMu.RLock()
	defer sm.clientsMu.RUnlock()
	return len(sm.clients)
}

// CloseAll closes all stream clients and refuses new ones
func (sm *StreamManager) CloseAll() {
	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	sm.closed = true
	for id, client := range sm.clients {
		close(client.updateChan)
		delete(sm.clients, id)
	}
}

// streamSubscriber bridges an environment's event bus to its watchers
type streamSubscriber struct {
	id      string
	streams *StreamManager
	logger  zerolog.Logger
}

var _ events.Subscriber = (*streamSubscriber)(nil)

func newStreamSubscriber(envID string, streams *StreamManager, logger zerolog.Logger) *streamSubscriber {
	return &streamSubscriber{id: "stream_" + envID, streams: streams, logger: logger}
}

func (s *streamSubscriber) ID() string { return s.id }

func (s *streamSubscriber) InterestedIn(string) bool { return true }

func (s *streamSubscriber) HandleEvent(event events.Event) {
	if s.streams.GetClientCount() == 0 {
		return
	}
	update, err := eventToStruct(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type()).Msg("Failed to encode event")
		return
	}
	s.streams.BroadcastToAll(update)
}
