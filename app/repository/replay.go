package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookReplayPrefix = "rzp:webhook:"

// WebhookReplayStore claims webhook event ids in Redis so concurrent or
// repeated deliveries of the same event are dispatched once.
type WebhookReplayStore struct {
	client redis.UniversalClient
}

func NewWebhookReplayStore(client redis.UniversalClient) *WebhookReplayStore {
	return &WebhookReplayStore{client: client}
}

// Acquire returns false when eventID is already claimed.
func (s *WebhookReplayStore) Acquire(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, webhookReplayPrefix+eventID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (s *WebhookReplayStore) Release(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, webhookReplayPrefix+eventID).Err()
}
