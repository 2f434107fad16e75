package websocket

import (
	"log/slog"
	"sync"

	"taskhub/internal/microservices/http-api/models"
)

// Conn is a live push channel to one user's client.
type Conn interface {
	// Send pushes a live event. While the connection is catching up the event is held.
	Send(n models.EnrichedNotification) error
	// Replay pushes the catch-up batch, then releases held live events that were not
	// part of the batch. Live events are delivered directly afterwards.
	Replay(batch []models.EnrichedNotification) error
	Close() error
}

// Registry maps a user to their current connection. The latest connection for a user
// wins; a superseded handle stays open but is no longer reachable through Lookup.
type Registry struct {
	conns  map[string]Conn // key: user ID
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]Conn),
		logger: logger,
	}
}

// Register records conn as the user's connection and returns the handle it replaced, if any.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.conns[userID]
	r.conns[userID] = conn
	r.logger.Info("connection_registered",
		"user_id", userID,
		"superseded", previous != nil,
	)
	return previous
}

// Unregister removes the entry whose value is conn. Handles that were already superseded
// or never registered are ignored.
func (r *Registry) Unregister(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, current := range r.conns {
		if current == conn {
			delete(r.conns, userID)
			r.logger.Info("connection_unregistered", "user_id", userID)
			return userID, true
		}
	}
	return "", false
}

func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Count returns the number of users with a live connection.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection and empties the registry. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, conn := range r.conns {
		if err := conn.Close(); err != nil {
			r.logger.Warn("connection_close_failed", "user_id", userID, "error", err)
			continue
		}
		r.logger.Info("connection_closed", "user_id", userID)
	}
	r.conns = make(map[string]Conn)
}
