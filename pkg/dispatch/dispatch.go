// -----------------------------------------------------------------------
// Dispatch - Client-side job submission and result rendezvous
// -----------------------------------------------------------------------

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/common"
	"github.com/ternarybob/atlas/pkg/broker"
	"github.com/ternarybob/atlas/pkg/models"
)

// DefaultTimeout bounds a submission when the caller passes no positive
// budget of its own.
const DefaultTimeout = 10 * time.Second

// cleanupTimeout bounds record deletion once the submitting context is
// already dead or the result is in hand.
const cleanupTimeout = 5 * time.Second

// Client submits jobs to the fabric and waits for their results. A single
// Client serves any number of concurrent Submit calls; each one waits on
// its own notification channel.
type Client struct {
	broker *broker.Broker
	logger arbor.ILogger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New connects a dispatch client from a redis URL.
func New(redisURL string, opts ...Option) (*Client, error) {
	b, err := broker.New(redisURL)
	if err != nil {
		return nil, err
	}
	return NewFromBroker(b, opts...), nil
}

// NewFromBroker builds a dispatch client on an existing broker.
func NewFromBroker(b *broker.Broker, opts ...Option) *Client {
	c := &Client{
		broker: b,
		logger: arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Broker exposes the underlying broker, shared with other components of
// the same process.
func (c *Client) Broker() *broker.Broker {
	return c.broker
}

// Close releases the broker connection.
func (c *Client) Close() error {
	return c.broker.Close()
}

// Submit enqueues one job and waits for its terminal outcome.
//
// The wait is bounded by timeout: on expiry the per-job record is deleted
// and ErrJobTimeout is returned, regardless of what a worker publishes
// later. Cancellation of ctx propagates as ErrJobCancelled, also deleting
// the record. A worker-reported failure surfaces as a JobFailedError
// carrying the recorded error text.
func (c *Client) Submit(ctx context.Context, job models.Job, timeout time.Duration) (*models.JobResult, error) {
	envelope, err := models.NewEnvelope(job)
	if err != nil {
		return nil, err
	}
	data, err := envelope.Encode()
	if err != nil {
		return nil, err
	}
	id := envelope.ID

	log := c.logger.WithCorrelationId(id)
	log.Debug().Str("kind", string(envelope.Kind)).Msg("Submitting job")

	if err := c.broker.Enqueue(ctx, id, data); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		// The budget is already spent; no transition could be observed.
		c.deleteRecord(id)
		return nil, fmt.Errorf("%w: job %s after %s", models.ErrJobTimeout, id, timeout)
	}

	sub := c.broker.Subscribe(ctx, id)
	defer sub.Close()

	// Wait for the subscribe acknowledgement so the terminal-state re-read
	// below is ordered after the subscription on the server.
	if _, err := sub.Receive(ctx); err != nil {
		c.deleteRecord(id)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: job %s: %v", models.ErrJobCancelled, id, ctx.Err())
		}
		return nil, fmt.Errorf("%w: subscribe %s: %v", models.ErrBrokerUnavailable, id, err)
	}

	// A worker may have driven the job to a terminal state between enqueue
	// and subscribe. Failure is fully recoverable from the record; success
	// data only travels on the channel, so keep waiting for it within the
	// budget.
	status, ok, err := c.broker.ReadStatus(ctx, id)
	if err != nil {
		c.deleteRecord(id)
		return nil, err
	}
	if ok && status == models.StatusFailed {
		return nil, c.failure(ctx, id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, open := <-sub.Channel():
		if !open {
			c.deleteRecord(id)
			return nil, fmt.Errorf("%w: notification channel closed for %s", models.ErrBrokerUnavailable, id)
		}
		return c.resolve(ctx, id, []byte(msg.Payload))
	case <-timer.C:
		c.deleteRecord(id)
		log.Warn().Str("timeout", timeout.String()).Msg("Job timed out")
		return nil, fmt.Errorf("%w: job %s after %s", models.ErrJobTimeout, id, timeout)
	case <-ctx.Done():
		c.deleteRecord(id)
		return nil, fmt.Errorf("%w: job %s: %v", models.ErrJobCancelled, id, ctx.Err())
	}
}

// resolve interprets the terminal notification. The record's status
// decides the outcome; the payload carries the result bytes on success.
func (c *Client) resolve(ctx context.Context, id string, payload []byte) (*models.JobResult, error) {
	status, ok, err := c.broker.ReadStatus(ctx, id)
	if err != nil {
		c.deleteRecord(id)
		return nil, err
	}

	// The record can already be gone (janitor or a competing cleanup); the
	// payload alone still tells success from failure.
	if !ok {
		status = models.StatusSucceed
		if models.IsFailureSentinel(payload) {
			status = models.StatusFailed
		}
	}

	if status == models.StatusFailed {
		return nil, c.failure(ctx, id)
	}

	gotID, result, err := models.DecodeResult(payload)
	if err != nil {
		c.deleteRecord(id)
		return nil, fmt.Errorf("decode result for %s: %w", id, err)
	}
	if gotID != id {
		c.deleteRecord(id)
		return nil, fmt.Errorf("%w: result for %s arrived on channel of %s", models.ErrMalformedEnvelope, gotID, id)
	}

	c.logger.WithCorrelationId(id).Debug().
		Str("content_type", result.ContentType).
		Int("bytes", len(result.Data)).
		Msg("Job result received")

	// Cleanup must not delay handing the result back.
	common.SafeGo(c.logger, "delete-record", func() {
		c.deleteRecord(id)
	})

	return result, nil
}

// failure reads the recorded error text, deletes the record and returns
// the JobFailedError.
func (c *Client) failure(ctx context.Context, id string) error {
	reason, err := c.broker.ReadError(ctx, id)
	if err != nil {
		reason = ""
	}
	c.deleteRecord(id)
	c.logger.WithCorrelationId(id).Warn().Str("reason", reason).Msg("Job failed")
	return &models.JobFailedError{JobID: id, Reason: reason}
}

// deleteRecord removes the per-job record on its own context so cleanup
// still happens when the submitting context is gone.
func (c *Client) deleteRecord(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := c.broker.DeleteRecord(ctx, id); err != nil {
		c.logger.WithCorrelationId(id).Warn().Err(err).Msg("Failed to delete job record")
	}
}
