// -----------------------------------------------------------------------
// Broker - Redis adapter for the job fabric wire contract
// -----------------------------------------------------------------------

package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/pkg/models"
)

const (
	// QueueKey is the single FIFO list every worker pops from.
	QueueKey = "jobs"

	// notificationPrefix scopes the per-job pub/sub channels.
	notificationPrefix = "notifications:"

	// DefaultRetryInterval is the pause between connect attempts.
	DefaultRetryInterval = time.Second
)

// ErrNoJob is returned by PopJob when the blocking timeout elapses with the
// queue still empty.
var ErrNoJob = errors.New("no job available")

// NotificationChannel returns the pub/sub channel carrying the terminal
// message for a job id.
func NotificationChannel(id string) string {
	return notificationPrefix + id
}

// Broker wraps a Redis client with the operations of the coordination
// protocol: the jobs queue, the per-job record hash and the notification
// channels. The underlying connection pool is safe for concurrent use.
type Broker struct {
	client *redis.Client
	logger arbor.ILogger
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// New connects a broker from a redis URL (redis://host:port/db).
func New(redisURL string, opts ...Option) (*Broker, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(redis.NewClient(options), opts...), nil
}

// NewFromClient wraps an existing client, which the caller keeps owning.
func NewFromClient(client *redis.Client, opts ...Option) *Broker {
	b := &Broker{
		client: client,
		logger: arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Client exposes the underlying redis client.
func (b *Broker) Client() *redis.Client {
	return b.client
}

// Close releases the connection pool.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Ping verifies connectivity once.
func (b *Broker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrBrokerUnavailable, err)
	}
	return nil
}

// WaitReady pings until the broker answers, retrying at the given interval
// and logging each failed attempt. Returns the context error when cancelled
// first.
func (b *Broker) WaitReady(ctx context.Context, retryInterval time.Duration) error {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	attempt := 0
	for {
		err := b.client.Ping(ctx).Err()
		if err == nil {
			if attempt > 0 {
				b.logger.Info().Int("attempts", attempt+1).Msg("Broker connection established")
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		b.logger.Warn().Err(err).Int("attempt", attempt).Msg("Broker not reachable, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Enqueue atomically appends an encoded envelope to the queue and
// initializes the per-job record as queued.
func (b *Broker) Enqueue(ctx context.Context, id string, envelope []byte) error {
	now := models.FormatTimestamp(time.Now())
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, QueueKey, envelope)
		pipe.HSet(ctx, id,
			models.FieldStatus, string(models.StatusQueued),
			models.FieldTimestamp, now,
			models.StatusTimestampField(models.StatusQueued), now,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: enqueue %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return nil
}

// PopJob blocks up to timeout for an envelope and removes it from the head
// of the queue. A zero timeout blocks until an envelope arrives. An elapsed
// timeout surfaces as ErrNoJob so callers can check their shutdown flag
// between pops; cancellation of ctx surfaces as the context error; other
// failures as ErrBrokerUnavailable.
func (b *Broker) PopJob(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := b.client.BLPop(ctx, timeout, QueueKey).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, fmt.Errorf("%w: pop: %v", models.ErrBrokerUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected pop reply of %d elements", models.ErrBrokerUnavailable, len(res))
	}
	return []byte(res[1]), nil
}

// QueueLength reports the number of waiting envelopes.
func (b *Broker) QueueLength(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, QueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen: %v", models.ErrBrokerUnavailable, err)
	}
	return n, nil
}

// MarkRunning transitions a record to running in one transaction.
func (b *Broker) MarkRunning(ctx context.Context, id string) error {
	now := models.FormatTimestamp(time.Now())
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, id,
			models.FieldStatus, string(models.StatusRunning),
			models.StatusTimestampField(models.StatusRunning), now,
			models.FieldTimestamp, now,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: mark running %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return nil
}

// MarkSucceeded publishes the encoded result on the job's notification
// channel and records the success fields, atomically.
func (b *Broker) MarkSucceeded(ctx context.Context, id, contentType string, duration time.Duration, result []byte) error {
	now := models.FormatTimestamp(time.Now())
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, NotificationChannel(id), result)
		pipe.HSet(ctx, id,
			models.FieldContentType, contentType,
			models.FieldStatus, string(models.StatusSucceed),
			models.FieldDuration, models.FormatDuration(duration),
			models.StatusTimestampField(models.StatusSucceed), now,
			models.FieldTimestamp, now,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: mark succeeded %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return nil
}

// MarkFailed publishes the failure sentinel and records the error text,
// atomically.
func (b *Broker) MarkFailed(ctx context.Context, id, errText string) error {
	now := models.FormatTimestamp(time.Now())
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, NotificationChannel(id), models.FailureSentinel)
		pipe.HSet(ctx, id,
			models.FieldStatus, string(models.StatusFailed),
			models.FieldError, errText,
			models.StatusTimestampField(models.StatusFailed), now,
			models.FieldTimestamp, now,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: mark failed %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return nil
}

// Subscribe opens the notification channel for a job. The caller owns the
// subscription and must Close it.
func (b *Broker) Subscribe(ctx context.Context, id string) *redis.PubSub {
	return b.client.Subscribe(ctx, NotificationChannel(id))
}

// ReadStatus fetches the current status; ok is false when the record does
// not exist.
func (b *Broker) ReadStatus(ctx context.Context, id string) (models.JobStatus, bool, error) {
	raw, err := b.client.HGet(ctx, id, models.FieldStatus).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: read status %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return models.JobStatus(raw), true, nil
}

// ReadError fetches the record's error text, empty when unset.
func (b *Broker) ReadError(ctx context.Context, id string) (string, error) {
	raw, err := b.client.HGet(ctx, id, models.FieldError).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read error %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return raw, nil
}

// ReadRecord fetches and parses the whole per-job record; ok is false when
// the record does not exist.
func (b *Broker) ReadRecord(ctx context.Context, id string) (*models.Record, bool, error) {
	fields, err := b.client.HGetAll(ctx, id).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: read record %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	rec, ok := models.ParseRecord(fields)
	return rec, ok, nil
}

// DeleteRecord removes the per-job record.
func (b *Broker) DeleteRecord(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("%w: delete record %s: %v", models.ErrBrokerUnavailable, id, err)
	}
	return nil
}

// ScanJobRecords walks every hash that looks like a per-job record and
// hands it to fn. A non-nil error from fn stops the scan.
func (b *Broker) ScanJobRecords(ctx context.Context, pageSize int64, fn func(id string, rec *models.Record) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	var cursor uint64
	for {
		keys, next, err := b.client.ScanType(ctx, cursor, "*", pageSize, "hash").Result()
		if err != nil {
			return fmt.Errorf("%w: scan: %v", models.ErrBrokerUnavailable, err)
		}
		for _, key := range keys {
			fields, err := b.client.HGetAll(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("%w: scan read %s: %v", models.ErrBrokerUnavailable, key, err)
			}
			if !models.IsJobRecord(fields) {
				continue
			}
			rec, ok := models.ParseRecord(fields)
			if !ok {
				continue
			}
			if err := fn(key, rec); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
