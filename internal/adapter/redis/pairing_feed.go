package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

const pairingChannel = "pairing:changed"

// PairingFeed fans partner changes out to every instance over Redis pub/sub.
type PairingFeed struct {
	rdb *goredis.Client
}

func NewPairingFeed(rdb *goredis.Client) *PairingFeed {
	return &PairingFeed{rdb: rdb}
}

func (f *PairingFeed) Publish(ctx context.Context, pairing domain.Pairing) error {
	payload, err := json.Marshal(pairing)
	if err != nil {
		return fmt.Errorf("failed to marshal pairing: %w", err)
	}
	if err := f.rdb.Publish(ctx, pairingChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish pairing change: %w", err)
	}
	return nil
}

// Subscribe returns a channel of pairing changes. It is closed when ctx is done.
func (f *PairingFeed) Subscribe(ctx context.Context) (<-chan domain.Pairing, error) {
	pubsub := f.rdb.Subscribe(ctx, pairingChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to pairing changes: %w", err)
	}

	out := make(chan domain.Pairing)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				pairing, err := decodePairing(msg.Payload)
				if err != nil {
					slog.Warn("Dropping pairing change", "error", err)
					continue
				}
				select {
				case out <- pairing:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodePairing(payload string) (domain.Pairing, error) {
	var pairing domain.Pairing
	if err := json.Unmarshal([]byte(payload), &pairing); err != nil {
		return domain.Pairing{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if pairing.SelfID == "" {
		return domain.Pairing{}, fmt.Errorf("%w: missing selfId", domain.ErrMalformedEvent)
	}
	return pairing, nil
}
