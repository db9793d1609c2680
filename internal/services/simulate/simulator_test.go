package simulate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
	domsvc "IncluScore/internal/domain/service"
	"IncluScore/internal/services/feature"
	"IncluScore/internal/services/scoring"
)

type stubSnapshot struct {
	raw     float64
	err     error
	version models.ModelVersion
}

func (s stubSnapshot) Predict(models.FeatureVector) (float64, error) { return s.raw, s.err }
func (s stubSnapshot) Version() models.ModelVersion                  { return s.version }

type stubScorer struct {
	snap      stubSnapshot
	available bool
}

func (s *stubScorer) Snapshot() (domsvc.ModelSnapshot, bool) {
	if !s.available {
		return nil, false
	}
	return s.snap, true
}

type stubExplainer struct {
	text string
}

func (s *stubExplainer) Explain(models.FeatureVector, models.ModelVersion) ([]models.FeatureImpact, string, []string, error) {
	return nil, s.text, nil, nil
}

func baselineAttrs() models.RawAttributes {
	return models.RawAttributes{
		models.FieldLoanRepaymentStatus:       0,
		models.FieldLoanTenureMonths:          12,
		models.FieldElectricityBillPaidOnTime: 1,
		models.FieldMobileRechargeFrequency:   2,
		models.FieldIsHighNeed:                0,
		models.FieldAge:                       32,
		models.FieldMonthlyIncome:             12000.0,
		models.FieldEmploymentType:            "self_employed",
	}
}

func newSimulator(scorer domsvc.Scorer) *Simulator {
	tr := scoring.NewTranslator(scoring.DefaultScale(), scoring.DefaultThresholds())
	return NewSimulator(feature.NewCodec(), scorer, tr, &stubExplainer{text: "Model explanation."})
}

func TestSimulateEmptyChangeSet(t *testing.T) {
	s := newSimulator(&stubScorer{snap: stubSnapshot{raw: 0.7}, available: true})

	_, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 650,
	})
	assert.ErrorIs(t, err, models.ErrEmptyChangeSet)
}

func TestSimulateUnknownField(t *testing.T) {
	s := newSimulator(&stubScorer{snap: stubSnapshot{raw: 0.7}, available: true})

	_, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 650,
		Changes:       map[string]interface{}{"credit_card_limit": 50000},
	})

	var uerr *models.UnknownFieldError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "credit_card_limit", uerr.Field)
}

func TestSimulateModelPath(t *testing.T) {
	s := newSimulator(&stubScorer{snap: stubSnapshot{raw: 0.75}, available: true})

	p, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 650,
		Changes:       map[string]interface{}{models.FieldLoanRepaymentStatus: 1},
	})
	require.NoError(t, err)

	assert.False(t, p.Degraded)
	assert.Equal(t, 750, p.Result.DisplayScore)
	assert.Equal(t, 100, p.ScoreChange)
	assert.Equal(t, models.RiskLow, p.Result.RiskCategory)
	assert.Contains(t, p.Explanation, "Model explanation.")
	assert.Contains(t, p.Explanation, "increase the score by 100 points")
}

func TestSimulateDegradedRepaymentDelta(t *testing.T) {
	s := newSimulator(&stubScorer{})

	p, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 650,
		Changes:       map[string]interface{}{models.FieldLoanRepaymentStatus: 1},
	})
	require.NoError(t, err)

	assert.True(t, p.Degraded)
	assert.Equal(t, 690, p.Result.DisplayScore)
	assert.Equal(t, 40, p.ScoreChange)
	// 690 maps back to raw 0.65, exactly the low-risk boundary
	assert.Equal(t, models.RiskLow, p.Result.RiskCategory)
	assert.InDelta(t, 30.0, p.Result.Confidence, 0.01)
	assert.Equal(t, models.NeedLow, p.Result.NeedCategory)
	assert.Contains(t, p.Explanation, "scoring model is unavailable")
	assert.Contains(t, p.Explanation, "increase the score by 40 points")
}

func TestSimulateDegradedDeltas(t *testing.T) {
	tests := []struct {
		name     string
		baseline int
		changes  map[string]interface{}
		want     int
		wantRisk models.RiskCategory
	}{
		{
			name:     "electricity flip",
			baseline: 600,
			changes:  map[string]interface{}{models.FieldElectricityBillPaidOnTime: 0},
			want:     575,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "employment step up",
			baseline: 600,
			changes:  map[string]interface{}{models.FieldEmploymentType: "salaried"},
			want:     615,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "recharge step",
			baseline: 600,
			changes:  map[string]interface{}{models.FieldMobileRechargeFrequency: 4},
			want:     616,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "income capped",
			baseline: 600,
			changes:  map[string]interface{}{models.FieldMonthlyIncome: 100000.0},
			want:     620,
			wantRisk: models.RiskMedium,
		},
		{
			name:     "clamped at ceiling",
			baseline: 890,
			changes:  map[string]interface{}{models.FieldLoanRepaymentStatus: 1},
			want:     900,
			wantRisk: models.RiskLow,
		},
		{
			name:     "combined changes",
			baseline: 600,
			changes: map[string]interface{}{
				models.FieldLoanRepaymentStatus:     1,
				models.FieldMobileRechargeFrequency: 3,
			},
			want:     648,
			wantRisk: models.RiskMedium,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSimulator(&stubScorer{})

			p, err := s.Simulate(context.Background(), domsvc.SimulationInput{
				Attributes:    baselineAttrs(),
				BaselineScore: tt.baseline,
				Changes:       tt.changes,
			})
			require.NoError(t, err)
			assert.True(t, p.Degraded)
			assert.Equal(t, tt.want, p.Result.DisplayScore)
			assert.Equal(t, tt.wantRisk, p.Result.RiskCategory)
		})
	}
}

func TestSimulatePredictErrorPropagates(t *testing.T) {
	s := newSimulator(&stubScorer{
		snap:      stubSnapshot{err: &models.SchemaMismatchError{ModelVersionID: "v1"}},
		available: true,
	})

	_, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 600,
		Changes:       map[string]interface{}{models.FieldLoanRepaymentStatus: 1},
	})

	// a failing model is an error, not a trigger for the heuristic
	var serr *models.SchemaMismatchError
	require.ErrorAs(t, err, &serr)
}

func TestSimulateDoesNotMutateInput(t *testing.T) {
	s := newSimulator(&stubScorer{snap: stubSnapshot{raw: 0.6}, available: true})
	attrs := baselineAttrs()
	changes := map[string]interface{}{models.FieldLoanRepaymentStatus: 1}

	_, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    attrs,
		BaselineScore: 600,
		Changes:       changes,
	})
	require.NoError(t, err)

	assert.Equal(t, baselineAttrs(), attrs)
	assert.Equal(t, map[string]interface{}{models.FieldLoanRepaymentStatus: 1}, changes)
}

func TestSimulateInvalidChangeValue(t *testing.T) {
	s := newSimulator(&stubScorer{snap: stubSnapshot{raw: 0.6}, available: true})

	_, err := s.Simulate(context.Background(), domsvc.SimulationInput{
		Attributes:    baselineAttrs(),
		BaselineScore: 600,
		Changes:       map[string]interface{}{models.FieldMobileRechargeFrequency: 9},
	})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.FieldMobileRechargeFrequency, verr.Field)
}
