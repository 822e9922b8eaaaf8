package frequency

import (
	"context"
	"fmt"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "comm:freq:"

	// reservationTTL bounds how long a leaked slot can suppress sends when a
	// process dies between Reserve and Release.
	reservationTTL = 2 * time.Minute
)

// releaseScript decrements the slot counter and removes the key once it
// reaches zero, so abandoned keys do not linger at zero with a live TTL.
var releaseScript = redis.NewScript(`
local current = redis.call("DECR", KEYS[1])
if current <= 0 then
	redis.call("DEL", KEYS[1])
end
return current
`)

// RedisFrequencyReserver implements communication.FrequencyReserver on Redis.
// This is suitable for distributed deployments where multiple instances
// race on the same user's frequency caps.
type RedisFrequencyReserver struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisFrequencyReserver creates a reserver with an existing Redis client
func NewRedisFrequencyReserver(client *redis.Client, keyPrefix string) *RedisFrequencyReserver {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisFrequencyReserver{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisFrequencyReserver) key(userID uuid.UUID, trigger communication.TriggerType) string {
	return fmt.Sprintf("%s%s:%s", r.keyPrefix, userID, trigger)
}

// Reserve atomically claims an in-flight slot for the (user, trigger) key and
// reports how many slots are held including this one
func (r *RedisFrequencyReserver) Reserve(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType) (*communication.Reservation, error) {
	key := r.key(userID, trigger)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, reservationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to reserve frequency slot: %w", err)
	}

	return &communication.Reservation{
		UserID:      userID,
		TriggerType: trigger,
		InFlight:    int(incr.Val()),
	}, nil
}

// Release returns a previously reserved slot
func (r *RedisFrequencyReserver) Release(ctx context.Context, reservation *communication.Reservation) error {
	if reservation == nil {
		return nil
	}

	key := r.key(reservation.UserID, reservation.TriggerType)
	if err := releaseScript.Run(ctx, r.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("failed to release frequency slot: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (r *RedisFrequencyReserver) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
