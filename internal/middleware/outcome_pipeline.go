package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
)

// OutcomePipeline sits between the HTTP intake and the Kafka publisher.
// It validates, throttles per beneficiary, and buffers outcomes when the
// broker is unavailable so submissions are not lost on transient outages.
type OutcomePipeline struct {
	pub      domrepo.OutcomePublisher
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Outcome
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-beneficiary last accepted time
}

type PipelineOption func(*OutcomePipeline)

// WithMaxRPS sets the max accepted outcomes per second per beneficiary.
func WithMaxRPS(n int) PipelineOption {
	return func(p *OutcomePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used when the broker is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *OutcomePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewOutcomePipeline creates a new pipeline.
func NewOutcomePipeline(pub domrepo.OutcomePublisher, metrics domrepo.Metrics, opts ...PipelineOption) *OutcomePipeline {
	p := &OutcomePipeline{
		pub:      pub,
		metrics:  metrics,
		maxRPS:   10,
		bufSize:  1000,
		bufCh:    make(chan *models.Outcome, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Outcome, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered outcomes.
func (p *OutcomePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.pub.Publish(ctx, o); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("outcome_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("outcome_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *OutcomePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Publish validates and forwards an outcome downstream, buffering on
// broker errors. A throttled submission is rejected with
// models.ErrOutcomeThrottled; the caller is never told an outcome was
// accepted unless it was published or buffered for retry.
func (p *OutcomePipeline) Publish(ctx context.Context, o *models.Outcome) error {
	start := time.Now()
	if err := validateOutcome(o); err != nil {
		p.metrics.RecordError("outcome_validate")
		return err
	}
	if !p.allow(o.BeneficiaryID, start) {
		p.metrics.RecordError("outcome_throttle")
		return fmt.Errorf("beneficiary %s: %w", o.BeneficiaryID, models.ErrOutcomeThrottled)
	}

	if err := p.pub.Publish(ctx, o); err != nil {
		p.metrics.RecordError("outcome_publish")
		// buffer non-blocking
		select {
		case p.bufCh <- o:
			p.metrics.RecordLatency("outcome_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("outcome_buffer_full")
		}
		return fmt.Errorf("outcome downstream: %w", err)
	}
	p.metrics.RecordLatency("outcome_publish", time.Since(start).Seconds())
	return nil
}

// Close shuts down the pipeline and its publisher.
func (p *OutcomePipeline) Close() error {
	p.Stop()
	return p.pub.Close()
}

func validateOutcome(o *models.Outcome) error {
	if o == nil {
		return fmt.Errorf("outcome nil")
	}
	if o.BeneficiaryID == "" {
		return fmt.Errorf("beneficiary id empty")
	}
	if o.Creditworthy != 0 && o.Creditworthy != 1 {
		return fmt.Errorf("creditworthy must be 0 or 1")
	}
	if o.ObservedAt.IsZero() {
		return fmt.Errorf("observed_at missing")
	}
	return nil
}

func (p *OutcomePipeline) allow(beneficiary string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[beneficiary]
	if last.IsZero() {
		p.lastSeen[beneficiary] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[beneficiary] = now
	return true
}
