// Package redis publishes fused signals to Redis for out-of-process
// consumers: one PubSub message per emitted signal plus a latest-value
// key per (symbol, timeframe) with a short TTL. Publishing is best
// effort: a Redis outage never stalls a streaming session.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-enginev1/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration // TTL for latest-signal keys (default 30m)
}

// Publisher implements model.Broadcaster over Redis. All writes go
// through a circuit breaker; rejected or failed publishes are dropped
// with a counter hook rather than retried.
type Publisher struct {
	client  *goredis.Client
	breaker *Breaker
	ttl     time.Duration

	// OnDrop, if set, is called when a publish is skipped or fails.
	OnDrop func()
}

// NewPublisher connects to Redis and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewBreaker(5, 10*time.Second),
		ttl:     ttl,
	}, nil
}

// NewPublisherWithClient wraps an existing client (used in tests).
func NewPublisherWithClient(client *goredis.Client) *Publisher {
	return &Publisher{
		client:  client,
		breaker: NewBreaker(5, 10*time.Second),
		ttl:     defaultLatestTTL,
	}
}

// Breaker exposes the circuit breaker for metrics wiring.
func (p *Publisher) Breaker() *Breaker { return p.breaker }

// Client exposes the underlying connection for liveness probes.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Emit publishes every signal in the update: PUBLISH on the per-key
// signal channel and SET of the latest-value key. One pipeline per
// update keeps it to a single round trip.
func (p *Publisher) Emit(ctx context.Context, update model.StreamUpdate) {
	err := p.breaker.Do(func() error {
		pipe := p.client.Pipeline()
		for symbol, rec := range update.Signals {
			if rec.Signal == nil {
				continue
			}
			payload := rec.Signal.JSON()
			ch := SignalChannel(symbol, update.Timeframe)
			pipe.Publish(ctx, ch, payload)
			pipe.Set(ctx, LatestKey(symbol, update.Timeframe), payload, p.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if p.OnDrop != nil {
			p.OnDrop()
		}
		if err != ErrBreakerOpen {
			log.Printf("[redis] publish failed: %v", err)
		}
	}
}

// Latest returns the most recent published signal for a key, or nil if
// none is cached.
func (p *Publisher) Latest(ctx context.Context, symbol string, tf model.Timeframe) ([]byte, error) {
	data, err := p.client.Get(ctx, LatestKey(symbol, tf)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	return data, err
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// SignalChannel returns the PubSub channel for a key:
// "pub:signal:{timeframe}:{symbol}".
func SignalChannel(symbol string, tf model.Timeframe) string {
	return "pub:signal:" + string(tf) + ":" + symbol
}

// LatestKey returns the latest-value key: "signal:latest:{timeframe}:{symbol}".
func LatestKey(symbol string, tf model.Timeframe) string {
	return "signal:latest:" + string(tf) + ":" + symbol
}
