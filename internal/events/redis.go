package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"courtside/internal/models"
)

// DefaultChannel is the Redis channel changes are fanned out on.
const DefaultChannel = "courtside:changes"

type envelope struct {
	Origin string        `json:"origin"`
	Change models.Change `json:"change"`
}

// RedisBridge relays bus changes between application instances through Redis
// pub/sub. Changes published by this instance are not delivered twice.
type RedisBridge struct {
	rdb     *redis.Client
	bus     *Bus
	channel string
	origin  string
	logger  zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBridge prepares a bridge. Start must be called to begin relaying.
func NewRedisBridge(rdb *redis.Client, bus *Bus, channel string, logger *zerolog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events_redis").Logger()
	}
	return &RedisBridge{
		rdb:     rdb,
		bus:     bus,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  l,
	}
}

// Start subscribes to the channel and installs the bus forwarder. It returns
// once the subscription is confirmed.
func (r *RedisBridge) Start(ctx context.Context) error {
	ps := r.rdb.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = ps
	r.mu.Unlock()

	r.bus.SetForwarder(r.forward)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx, ps.Channel())
	}()

	r.logger.Info().Str("channel", r.channel).Str("origin", r.origin).Msg("change bridge started")
	return nil
}

// Close stops relaying. It is safe to call more than once.
func (r *RedisBridge) Close() error {
	r.mu.Lock()
	ps := r.pubsub
	r.pubsub = nil
	r.mu.Unlock()
	if ps == nil {
		return nil
	}

	r.bus.SetForwarder(nil)
	err := ps.Close()
	r.wg.Wait()
	return err
}

func (r *RedisBridge) loop(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn().Err(err).Msg("dropping malformed change")
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.bus.Deliver(env.Change)
		}
	}
}

func (r *RedisBridge) forward(change models.Change) {
	data, err := json.Marshal(envelope{Origin: r.origin, Change: change})
	if err != nil {
		r.logger.Error().Err(err).Msg("encode change")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(change.Kind)).Str("id", change.ID).Msg("relay change")
	}
}
