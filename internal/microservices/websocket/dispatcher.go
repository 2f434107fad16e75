package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/service"
)

// Publisher hands a dispatch to every server instance.
type Publisher interface {
	Publish(ctx context.Context, recipientID string, n models.EnrichedNotification) error
}

// Dispatcher delivers notifications to live connections held by this process and
// runs the catch-up burst for new connections.
type Dispatcher struct {
	registry      *Registry
	notifications service.NotificationService
	relay         Publisher
	logger        *slog.Logger
}

func NewDispatcher(registry *Registry, notifications service.NotificationService, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:      registry,
		notifications: notifications,
		logger:        logger,
	}
}

// UseRelay routes Dispatch through the relay; each instance's subscriber then calls DeliverLocal.
func (d *Dispatcher) UseRelay(relay Publisher) {
	d.relay = relay
}

// Dispatch implements service.Dispatcher. With a relay configured the event is published
// for all instances; if publishing fails it falls back to local delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, recipientID string, n models.EnrichedNotification) service.DispatchResult {
	if d.relay != nil {
		err := d.relay.Publish(ctx, recipientID, n)
		if err == nil {
			return service.DispatchRelayed
		}
		d.logger.Warn("dispatch_relay_failed", "recipient_id", recipientID, "notification_id", n.ID, "error", err)
	}
	return d.DeliverLocal(ctx, recipientID, n)
}

// DeliverLocal pushes n to the recipient's connection on this instance, if any.
func (d *Dispatcher) DeliverLocal(ctx context.Context, recipientID string, n models.EnrichedNotification) service.DispatchResult {
	conn, ok := d.registry.Lookup(recipientID)
	if !ok {
		// record stays unread in the store; the client catches up on its next connect
		d.logger.Info("dispatch_missed", "recipient_id", recipientID, "notification_id", n.ID)
		return service.DispatchMissed
	}
	if err := conn.Send(n); err != nil {
		d.logger.Warn("dispatch_transport_failed",
			"recipient_id", recipientID,
			"notification_id", n.ID,
			"error", err,
		)
		return service.DispatchTransportFailed
	}
	d.logger.Debug("dispatch_delivered", "recipient_id", recipientID, "notification_id", n.ID)
	return service.DispatchDelivered
}

// Connect registers conn for userID and replays every unread notification, newest first,
// before any live event reaches it. The connection stays registered if the replay fails;
// held live events are released either way.
func (d *Dispatcher) Connect(ctx context.Context, userID string, conn Conn) error {
	d.registry.Register(userID, conn)

	unread, err := d.notifications.ListUnread(ctx, userID)
	if err != nil {
		d.releaseHeld(userID, conn)
		return fmt.Errorf("catch-up for %s: %w", userID, err)
	}
	enriched, err := d.notifications.EnrichAll(ctx, unread)
	if err != nil {
		d.releaseHeld(userID, conn)
		return fmt.Errorf("catch-up for %s: %w", userID, err)
	}
	if err := conn.Replay(enriched); err != nil {
		d.logger.Warn("catch_up_send_failed", "user_id", userID, "error", err)
		return fmt.Errorf("catch-up for %s: %w", userID, err)
	}
	d.logger.Info("catch_up_sent", "user_id", userID, "count", len(enriched))
	return nil
}

// releaseHeld ends catch-up without a backlog so held live events still go out.
func (d *Dispatcher) releaseHeld(userID string, conn Conn) {
	if err := conn.Replay(nil); err != nil {
		d.logger.Warn("catch_up_release_failed", "user_id", userID, "error", err)
	}
}

// Disconnect drops conn from the registry if it is still the user's current connection.
func (d *Dispatcher) Disconnect(conn Conn) {
	d.registry.Unregister(conn)
}
