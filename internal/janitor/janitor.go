// -----------------------------------------------------------------------
// Janitor - Sweeper for orphaned per-job records
// -----------------------------------------------------------------------

package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/atlas/pkg/broker"
	"github.com/ternarybob/atlas/pkg/models"
)

// sweepTimeout bounds one scheduled pass.
const sweepTimeout = 5 * time.Minute

// Config tunes the sweeper.
type Config struct {
	Schedule string        // cron spec, e.g. "@every 5m"
	TTL      time.Duration // record age before reaping
	ScanRate float64       // records inspected per second, 0 = unlimited
	PageSize int64         // SCAN page size
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@every 5m"
	}
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return c
}

// Janitor deletes per-job records whose last transition is older than the
// TTL. Live submissions turn their records over well inside any sane TTL;
// what remains are records orphaned by crashed workers or clients.
type Janitor struct {
	broker  *broker.Broker
	logger  arbor.ILogger
	config  Config
	limiter *rate.Limiter
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(j *Janitor) {
		j.logger = logger
	}
}

// New builds a janitor over a broker.
func New(b *broker.Broker, config Config, opts ...Option) *Janitor {
	cfg := config.withDefaults()

	limit := rate.Inf
	if cfg.ScanRate > 0 {
		limit = rate.Limit(cfg.ScanRate)
	}

	j := &Janitor{
		broker:  b,
		logger:  arbor.NewLogger(),
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		cron:    cron.New(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the sweep on the cron schedule and starts it.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Warn().Err(err).Msg("Sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.config.Schedule, err)
	}

	j.cron.Start()
	j.running = true
	j.logger.Info().
		Str("schedule", j.config.Schedule).
		Str("ttl", j.config.TTL.String()).
		Msg("Janitor started")
	return nil
}

// Stop halts the schedule and waits for a sweep in progress to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info().Msg("Janitor stopped")
}

// Sweep runs one pass over the broker's job records and reports how many
// were reaped. Records whose timestamp cannot be read are left alone.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-j.config.TTL)
	reaped := 0

	err := j.broker.ScanJobRecords(ctx, j.config.PageSize, func(id string, rec *models.Record) error {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}
		if rec.Timestamp.IsZero() || rec.Timestamp.After(cutoff) {
			return nil
		}
		if err := j.broker.DeleteRecord(ctx, id); err != nil {
			return err
		}
		reaped++
		j.logger.Debug().
			Str("job_id", id).
			Str("status", string(rec.Status)).
			Msg("Reaped stale job record")
		return nil
	})
	if err != nil {
		return reaped, err
	}

	if reaped > 0 {
		j.logger.Info().Int("reaped", reaped).Msg("Sweep complete")
	}
	return reaped, nil
}
