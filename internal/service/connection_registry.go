package service

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/observability"
)

var (
	// ErrChannelClosed is returned when pushing to a channel that has already shut down.
	ErrChannelClosed = errors.New("realtime channel closed")
	// ErrChannelBackpressure is returned when the channel's outbound queue is full.
	ErrChannelBackpressure = errors.New("realtime channel send queue full")
)

// Channel is a live push connection to one client.
type Channel interface {
	Send(event dto.RealtimeEvent) error
	IsOpen() bool
	Close() error
}

type registration struct {
	token   string
	channel Channel
}

// ConnectionRegistry maps a user id to at most one live channel on this node.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	entries map[uint]registration
	logger  zerolog.Logger
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry(logger zerolog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		entries: make(map[uint]registration),
		logger:  logger.With().Str("component", "connection_registry").Logger(),
	}
}

// Register stores channel under userID, replacing and closing any previous channel for that user.
// The returned token must be handed back to Unregister.
func (r *ConnectionRegistry) Register(userID uint, channel Channel) string {
	token := uuid.NewString()

	r.mu.Lock()
	previous, replaced := r.entries[userID]
	r.entries[userID] = registration{token: token, channel: channel}
	count := len(r.entries)
	r.mu.Unlock()

	observability.RealtimeConnectionsActive().Set(float64(count))

	if replaced && previous.channel != channel {
		if err := previous.channel.Close(); err != nil {
			r.logger.Debug().Err(err).Uint("user_id", userID).Msg("failed to close replaced channel")
		}
		r.logger.Debug().Uint("user_id", userID).Msg("realtime channel replaced")
	}

	return token
}

// Unregister removes the user's entry when token still identifies the current registration.
// A stale token, left behind by a replaced connection, is a no-op.
func (r *ConnectionRegistry) Unregister(userID uint, token string) bool {
	r.mu.Lock()
	current, ok := r.entries[userID]
	if !ok || current.token != token {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	count := len(r.entries)
	r.mu.Unlock()

	observability.RealtimeConnectionsActive().Set(float64(count))
	return true
}

// Lookup returns the channel registered for userID.
func (r *ConnectionRegistry) Lookup(userID uint) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.channel, true
}

// Count returns the number of registered users.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CloseAll closes every registered channel and empties the registry.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[uint]registration)
	r.mu.Unlock()

	for userID, entry := range entries {
		if err := entry.channel.Close(); err != nil {
			r.logger.Debug().Err(err).Uint("user_id", userID).Msg("failed to close channel on shutdown")
		}
	}

	observability.RealtimeConnectionsActive().Set(0)
}
