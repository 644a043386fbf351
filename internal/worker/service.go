// -----------------------------------------------------------------------
// Worker Service - Long-lived job loop over the broker queue
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/broker"
	"github.com/ternarybob/atlas/pkg/models"
)

// Config tunes the job loop.
type Config struct {
	PopTimeout   time.Duration // bound per blocking pop; shutdown latency ceiling
	ConnectRetry time.Duration // delay between startup pings
	BackoffMin   time.Duration // first delay after a transient pop error
	BackoffMax   time.Duration // retry delay ceiling
}

func (c Config) withDefaults() Config {
	if c.PopTimeout <= 0 {
		c.PopTimeout = time.Second
	}
	if c.ConnectRetry <= 0 {
		c.ConnectRetry = broker.DefaultRetryInterval
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 10 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	return c
}

// Service is the long-lived worker: it pops envelopes off the shared
// queue, drives each per-job record through its state machine and invokes
// the executor. Exactly one goroutine runs the loop; concurrency across
// jobs comes from running more worker processes.
type Service struct {
	broker   *broker.Broker
	executor interfaces.JobExecutor
	logger   arbor.ILogger
	config   Config
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig overrides the loop tuning.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config.withDefaults()
	}
}

// NewService builds a worker over a broker and an executor.
func NewService(b *broker.Broker, executor interfaces.JobExecutor, opts ...Option) *Service {
	s := &Service{
		broker:   b,
		executor: executor,
		logger:   arbor.NewLogger(),
		config:   Config{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled. It waits for the broker to answer
// pings, then loops: pop, decode, execute, publish. Cancellation is only
// consulted between iterations; a job already executing finishes and
// publishes before Run returns. Returns nil on graceful shutdown.
func (s *Service) Run(ctx context.Context) error {
	if err := s.broker.WaitReady(ctx, s.config.ConnectRetry); err != nil {
		return err
	}
	s.logger.Info().Msg("Worker ready, waiting for jobs")

	backoff := s.config.BackoffMin
	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Worker stopping")
			return nil
		}

		data, err := s.broker.PopJob(ctx, s.config.PopTimeout)
		if errors.Is(err, broker.ErrNoJob) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("Worker stopping")
				return nil
			}
			s.logger.Warn().Err(err).Str("retry_in", backoff.String()).Msg("Pop failed, backing off")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				s.logger.Info().Msg("Worker stopping")
				return nil
			}
			backoff *= 2
			if backoff > s.config.BackoffMax {
				backoff = s.config.BackoffMax
			}
			continue
		}
		backoff = s.config.BackoffMin

		// The pop consumed the envelope, so from here every outcome is
		// terminal for it; nothing is ever requeued. Broker writes run on
		// a detached context so an in-flight job can publish during
		// shutdown.
		s.processEnvelope(context.WithoutCancel(ctx), data)
	}
}

// processEnvelope handles one popped envelope end to end.
func (s *Service) processEnvelope(ctx context.Context, data []byte) {
	kind, ok := models.ProbeKind(data)
	if !ok {
		s.logger.Error().
			Err(models.ErrUnsupportedJobKind).
			Int("bytes", len(data)).
			Msg("Discarding envelope of unknown kind")
		return
	}

	envelope, err := models.DecodeEnvelope(data)
	if err != nil {
		// With a parseable id the submitter can still learn of the failure
		// through the record; without one the envelope can only be dropped.
		if id := models.PeekEnvelopeID(data); id != "" {
			s.logger.Error().
				Err(err).
				Str("job_id", id).
				Str("job_type", string(kind)).
				Msg("Envelope failed decoding, marking job failed")
			if markErr := s.broker.MarkFailed(ctx, id, err.Error()); markErr != nil {
				s.logger.Error().Err(markErr).Str("job_id", id).Msg("Failed to record decode failure")
			}
			return
		}
		s.logger.Error().Err(err).Msg("Discarding undecodable envelope without id")
		return
	}

	log := s.logger.WithCorrelationId(envelope.ID)
	log.Info().Str("job_type", string(kind)).Msg("Processing job")

	if err := s.broker.MarkRunning(ctx, envelope.ID); err != nil {
		// Execution proceeds anyway; if the broker recovers in time the
		// result is still deliverable within the client's budget.
		log.Error().Err(err).Msg("Failed to mark job running")
	}

	started := time.Now()
	result, err := s.executor.Process(ctx, envelope.Job)
	elapsed := time.Since(started)

	if err != nil {
		log.Warn().Err(err).Str("job_type", string(kind)).Msg("Job failed")
		if markErr := s.broker.MarkFailed(ctx, envelope.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("Failed to record job failure")
		}
		return
	}

	payload, err := models.EncodeResult(envelope.ID, result)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode job result")
		if markErr := s.broker.MarkFailed(ctx, envelope.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("Failed to record encode failure")
		}
		return
	}

	if err := s.broker.MarkSucceeded(ctx, envelope.ID, result.ContentType, elapsed, payload); err != nil {
		log.Error().Err(err).Msg("Failed to publish job result")
		return
	}

	log.Info().
		Str("job_type", string(kind)).
		Str("content_type", result.ContentType).
		Str("duration", elapsed.String()).
		Msg("Job completed successfully")
}
