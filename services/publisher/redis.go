package publisher

import (
	"context"
	"encoding/base64"
	"math/rand"
	"strconv"

	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisPublisher
type RedisOptions struct {
	Addr string
	DB   int
	// StreamPrefix names the streams: <prefix>:0 .. <prefix>:<StreamCount-1>
	StreamPrefix    string
	StreamCount     int
	StreamMaxLength int
}

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher connects to Redis and checks the connection
func NewRedisPublisher(ctx context.Context, opts RedisOptions) (*RedisPublisher, error) {
	if opts.StreamCount < 1 {
		opts.StreamCount = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewPublisher(opts.Addr, "failed to connect to redis", err)
	}

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    opts.StreamPrefix,
		streamCount:     opts.StreamCount,
		streamMaxLength: opts.StreamMaxLength,
		log:             logger.ForPublisher(),
	}, nil
}

// streamName picks one of the configured streams
func (p *RedisPublisher) streamName() string {
	return p.streamPrefix + ":" + strconv.Itoa(rand.Intn(p.streamCount))
}

// Publish publishes a message to a Redis stream
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(key string, message []byte) error {
	encoded := base64.StdEncoding.EncodeToString(message)
	stream := p.streamName()

	err := p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encoded,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher(stream, "xadd failed", err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for n := 0; n < p.streamCount; n++ {
		stream := p.streamPrefix + ":" + strconv.Itoa(n)
		if err := p.client.XTrimMaxLen(p.ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher(stream, "xtrim failed", err)
		}
	}

	p.log.Debug().Int("streams", p.streamCount).Int("max_length", p.streamMaxLength).Msg("Trimmed streams")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
