package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
	"IncluScore/internal/services/explain"
	"IncluScore/internal/services/feature"
	"IncluScore/internal/services/lifecycle"
	"IncluScore/internal/services/scoring"
	"IncluScore/internal/services/simulate"
	applogger "IncluScore/pkg/logger"
)

type memModelStore struct {
	mu       sync.Mutex
	versions []*models.ModelVersion
	activeID string
}

func (s *memModelStore) Init(context.Context) error { return nil }

func (s *memModelStore) SaveVersion(_ context.Context, mv *models.ModelVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *mv
	s.versions = append(s.versions, &cp)
	return nil
}

func (s *memModelStore) MarkActive(_ context.Context, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = versionID
	return nil
}

func (s *memModelStore) LoadActive(context.Context) (*models.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mv := range s.versions {
		if mv.ID == s.activeID {
			cp := *mv
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memModelStore) ListVersions(_ context.Context, limit int) ([]*models.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ModelVersion, 0, limit)
	for i := len(s.versions) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.versions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memModelStore) Close() error { return nil }

type memHistoryStore struct {
	mu      sync.Mutex
	records []*models.ScoreHistoryRecord
}

func (s *memHistoryStore) Init(context.Context) error { return nil }

func (s *memHistoryStore) Append(_ context.Context, rec *models.ScoreHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *memHistoryStore) Query(_ context.Context, beneficiaryID string, from, to time.Time, limit int) ([]*models.ScoreHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScoreHistoryRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if r.BeneficiaryID != beneficiaryID || r.CreatedAt.Before(from) || r.CreatedAt.After(to) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memHistoryStore) Health(context.Context) error { return nil }
func (s *memHistoryStore) Close() error                 { return nil }

type memScoreCache struct {
	mu     sync.Mutex
	latest map[string]*models.ScoreReport
}

func newMemScoreCache() *memScoreCache {
	return &memScoreCache{latest: make(map[string]*models.ScoreReport)}
}

func (c *memScoreCache) SetLatest(_ context.Context, id string, report *models.ScoreReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *report
	c.latest[id] = &cp
	return nil
}

func (c *memScoreCache) GetLatest(_ context.Context, id string) (*models.ScoreReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.latest[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (c *memScoreCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.latest, id)
	return nil
}

type memPublisher struct {
	mu        sync.Mutex
	published []*models.Outcome
}

func (p *memPublisher) Publish(_ context.Context, o *models.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *o
	p.published = append(p.published, &cp)
	return nil
}

func (p *memPublisher) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordScore(string, string)    {}
func (noopMetrics) RecordSimulation(bool)         {}
func (noopMetrics) RecordOutcome(string)          {}
func (noopMetrics) RecordModelActivation(string)  {}
func (noopMetrics) RecordError(string)            {}
func (noopMetrics) RecordLatency(string, float64) {}
func (noopMetrics) SetOutcomeBufferSize(int)      {}

type engineFixture struct {
	engine  *ScoringEngine
	history *memHistoryStore
	cache   *memScoreCache
	pub     *memPublisher
	manager *lifecycle.Manager
}

// newEngineFixture wires a full engine over in-memory stores. A positive
// bootstrapSize trains an initial model on the seeded synthetic cohort of
// that size; zero leaves the manager without an active version.
func newEngineFixture(t *testing.T, bootstrapSize int) *engineFixture {
	t.Helper()
	logger, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	cfg := lifecycle.DefaultConfig()
	if bootstrapSize > 0 {
		cfg.BootstrapSize = bootstrapSize
	}
	manager := lifecycle.NewManager(cfg, &memModelStore{}, logger, noopMetrics{})
	if bootstrapSize > 0 {
		require.NoError(t, manager.Bootstrap(context.Background()))
	}

	codec := feature.NewCodec()
	translator := scoring.NewTranslator(scoring.DefaultScale(), scoring.DefaultThresholds())
	explainer := explain.NewExplainer(translator, cfg.Train)
	simulator := simulate.NewSimulator(codec, manager, translator, explainer)

	history := &memHistoryStore{}
	cache := newMemScoreCache()
	pub := &memPublisher{}

	engine := NewScoringEngine(codec, manager, translator, explainer, simulator,
		history, cache, pub, noopMetrics{}, logger)
	return &engineFixture{engine: engine, history: history, cache: cache, pub: pub, manager: manager}
}

func scoreRequest() *models.ScoreRequest {
	return &models.ScoreRequest{
		BeneficiaryID: "ben-42",
		Attributes: map[string]interface{}{
			models.FieldLoanRepaymentStatus:       1,
			models.FieldLoanTenureMonths:          24,
			models.FieldElectricityBillPaidOnTime: 1,
			models.FieldMobileRechargeFrequency:   3,
			models.FieldIsHighNeed:                1,
			models.FieldAge:                       30,
			models.FieldMonthlyIncome:             15000.0,
			models.FieldEmploymentType:            "salaried",
		},
		Trigger: string(models.TriggerNewApplication),
	}
}

func TestScorePersistsAndCaches(t *testing.T) {
	f := newEngineFixture(t, 60)

	report, err := f.engine.Score(context.Background(), scoreRequest())
	require.NoError(t, err)

	assert.Equal(t, "ben-42", report.BeneficiaryID)
	assert.GreaterOrEqual(t, report.Result.DisplayScore, 300)
	assert.LessOrEqual(t, report.Result.DisplayScore, 900)
	assert.Equal(t, models.NeedHigh, report.Result.NeedCategory)
	assert.NotEmpty(t, report.Result.Recommendation)
	assert.NotEmpty(t, report.Explanation)
	assert.NotEmpty(t, report.ModelVersionID)
	assert.Len(t, report.Impacts, len(models.FeatureOrder))

	// audit row appended
	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.Equal(t, models.TriggerNewApplication, rec.Trigger)
	assert.Equal(t, report.Result, rec.Result)

	// latest cached
	cached, err := f.engine.Latest(context.Background(), "ben-42")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, report.Result.DisplayScore, cached.Result.DisplayScore)
}

func TestScoreInvalidTrigger(t *testing.T) {
	f := newEngineFixture(t, 60)
	req := scoreRequest()
	req.Trigger = "quarterly_audit"

	_, err := f.engine.Score(context.Background(), req)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.history.records)
}

func TestScoreRejectsSimulationTrigger(t *testing.T) {
	f := newEngineFixture(t, 60)
	req := scoreRequest()
	req.Trigger = string(models.TriggerSimulation)

	_, err := f.engine.Score(context.Background(), req)

	// simulation previews go through Simulate; they never hit the audit trail
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "trigger", verr.Field)
	assert.Empty(t, f.history.records)
}

func TestScoreWithoutModel(t *testing.T) {
	f := newEngineFixture(t, 0)

	_, err := f.engine.Score(context.Background(), scoreRequest())
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestScoreDeterministicForSameInput(t *testing.T) {
	f := newEngineFixture(t, 60)

	r1, err := f.engine.Score(context.Background(), scoreRequest())
	require.NoError(t, err)
	r2, err := f.engine.Score(context.Background(), scoreRequest())
	require.NoError(t, err)

	assert.Equal(t, r1.Result.RawScore, r2.Result.RawScore)
	assert.Equal(t, r1.Explanation, r2.Explanation)
	assert.Equal(t, r1.Impacts, r2.Impacts)
}

func TestScoreFavorableProfileEndToEnd(t *testing.T) {
	// a larger cohort washes out sampling noise so the trained model
	// attributes a strong profile to its genuinely strong drivers
	f := newEngineFixture(t, 400)

	report, err := f.engine.Score(context.Background(), &models.ScoreRequest{
		BeneficiaryID: "ben-favorable",
		Attributes: map[string]interface{}{
			models.FieldLoanRepaymentStatus:       1,
			models.FieldLoanTenureMonths:          24,
			models.FieldElectricityBillPaidOnTime: 1,
			models.FieldMobileRechargeFrequency:   4,
			models.FieldIsHighNeed:                0,
			models.FieldAge:                       35,
			models.FieldMonthlyIncome:             25000.0,
			models.FieldEmploymentType:            2,
		},
		Trigger: string(models.TriggerNewApplication),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RiskLow, report.Result.RiskCategory)
	assert.Equal(t, models.NeedLow, report.Result.NeedCategory)
	assert.Equal(t, "standard_approval", report.Result.Recommendation)
	assert.GreaterOrEqual(t, report.Result.DisplayScore, 750)

	require.NotEmpty(t, report.Impacts)
	top := report.Impacts[0]
	assert.Contains(t,
		[]string{models.FieldLoanRepaymentStatus, models.FieldMonthlyIncome},
		top.Feature)
	assert.Greater(t, top.Impact, 0.0)

	assert.Contains(t, report.Explanation, "excellent credit score")

	version, ok := f.manager.Active()
	require.True(t, ok)
	assert.Equal(t, version.ID, report.ModelVersionID)
}

func TestSimulateDoesNotPersist(t *testing.T) {
	f := newEngineFixture(t, 60)

	res, err := f.engine.Simulate(context.Background(), &models.SimulateRequest{
		BeneficiaryID:     "ben-42",
		CurrentAttributes: scoreRequest().Attributes,
		CurrentScore:      650,
		Changes:           map[string]interface{}{models.FieldMonthlyIncome: 25000.0},
	})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, 650, res.CurrentScore)
	assert.Equal(t, res.ProjectedScore-650, res.ScoreChange)
	assert.Empty(t, f.history.records)
}

func TestSimulateDegradedWithoutModel(t *testing.T) {
	f := newEngineFixture(t, 0)

	res, err := f.engine.Simulate(context.Background(), &models.SimulateRequest{
		BeneficiaryID:     "ben-42",
		CurrentAttributes: scoreRequest().Attributes,
		CurrentScore:      650,
		Changes:           map[string]interface{}{models.FieldElectricityBillPaidOnTime: 0},
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, 625, res.ProjectedScore)
	assert.Equal(t, -25, res.ScoreChange)
	// the projected score still carries a risk bucket and confidence
	assert.Equal(t, string(models.RiskMedium), res.RiskCategory)
	assert.Positive(t, res.Confidence)
}

func TestRecordOutcomePublishes(t *testing.T) {
	f := newEngineFixture(t, 60)
	label := 1

	err := f.engine.RecordOutcome(context.Background(), &models.OutcomeRequest{
		BeneficiaryID: "ben-42",
		Attributes:    scoreRequest().Attributes,
		Creditworthy:  &label,
	})
	require.NoError(t, err)

	require.Len(t, f.pub.published, 1)
	o := f.pub.published[0]
	assert.Equal(t, "ben-42", o.BeneficiaryID)
	assert.Equal(t, 1, o.Creditworthy)
	assert.Equal(t, 1.0, o.Features.LoanRepaymentStatus)
	assert.False(t, o.ObservedAt.IsZero())
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	f := newEngineFixture(t, 60)

	_, err := f.engine.Score(context.Background(), scoreRequest())
	require.NoError(t, err)
	_, err = f.engine.Score(context.Background(), scoreRequest())
	require.NoError(t, err)

	records, err := f.engine.History(context.Background(), "ben-42", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	none, err := f.engine.History(context.Background(), "ben-unknown", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
