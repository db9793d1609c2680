package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	published []*models.Outcome
}

func (p *flakyPublisher) Publish(_ context.Context, o *models.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	cp := *o
	p.published = append(p.published, &cp)
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func (p *flakyPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordScore(string, string)   {}
func (m *countingMetrics) RecordSimulation(bool)        {}
func (m *countingMetrics) RecordOutcome(string)         {}
func (m *countingMetrics) RecordModelActivation(string) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) SetOutcomeBufferSize(int)      {}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validOutcome(id string) *models.Outcome {
	return &models.Outcome{
		BeneficiaryID: id,
		Features:      models.FeatureVector{LoanRepaymentStatus: 1},
		Creditworthy:  1,
		ObservedAt:    time.Now().UTC(),
	}
}

func TestPipelineRejectsInvalidOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome *models.Outcome
	}{
		{"nil", nil},
		{"empty beneficiary", &models.Outcome{Creditworthy: 1, ObservedAt: time.Now()}},
		{"bad label", &models.Outcome{BeneficiaryID: "b", Creditworthy: 3, ObservedAt: time.Now()}},
		{"missing timestamp", &models.Outcome{BeneficiaryID: "b", Creditworthy: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &flakyPublisher{}
			p := NewOutcomePipeline(pub, newCountingMetrics())

			err := p.Publish(context.Background(), tt.outcome)
			assert.Error(t, err)
			assert.Zero(t, pub.count())
		})
	}
}

func TestPipelinePassesThrough(t *testing.T) {
	pub := &flakyPublisher{}
	p := NewOutcomePipeline(pub, newCountingMetrics())

	require.NoError(t, p.Publish(context.Background(), validOutcome("b-1")))
	assert.Equal(t, 1, pub.count())
}

func TestPipelineThrottlesPerBeneficiary(t *testing.T) {
	pub := &flakyPublisher{}
	m := newCountingMetrics()
	p := NewOutcomePipeline(pub, m, WithMaxRPS(1))

	require.NoError(t, p.Publish(context.Background(), validOutcome("b-1")))
	// immediate second submission is rejected, not silently swallowed
	err := p.Publish(context.Background(), validOutcome("b-1"))
	require.ErrorIs(t, err, models.ErrOutcomeThrottled)
	// other beneficiaries are unaffected
	require.NoError(t, p.Publish(context.Background(), validOutcome("b-2")))

	assert.Equal(t, 2, pub.count())
	assert.Equal(t, 1, m.errorCount("outcome_throttle"))
	// the rejected outcome was neither published nor buffered
	assert.Empty(t, p.bufCh)
}

func TestPipelineBuffersAndFlushesOnRecovery(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	p := NewOutcomePipeline(pub, newCountingMetrics(), WithBufferSize(8))

	err := p.Publish(context.Background(), validOutcome("b-1"))
	assert.Error(t, err)
	assert.Zero(t, pub.count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.Eventually(t, func() bool { return pub.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}
