package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/microservices/http-api/service"

	"github.com/redis/go-redis/v9"
)

// relayEnvelope is the pub/sub payload shared between instances.
type relayEnvelope struct {
	RecipientID  string                      `json:"recipientId"`
	Notification models.EnrichedNotification `json:"payload"`
}

// RedisRelay fans dispatches out to every server instance over a redis channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisClient connects to redisURL (redis://...) and verifies the connection.
func NewRedisClient(redisURL, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func NewRedisRelay(client *redis.Client, channel string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (r *RedisRelay) Publish(ctx context.Context, recipientID string, n models.EnrichedNotification) error {
	payload, err := json.Marshal(relayEnvelope{RecipientID: recipientID, Notification: n})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run subscribes to the relay channel and calls deliver for every envelope until ctx ends.
func (r *RedisRelay) Run(ctx context.Context, deliver func(context.Context, string, models.EnrichedNotification) service.DispatchResult) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relay_subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("relay_message_invalid", "error", err)
				continue
			}
			deliver(ctx, env.RecipientID, env.Notification)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
