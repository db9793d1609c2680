package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
)

// separableSamples builds a deterministic cohort where the repayment flag
// alone decides the label; all other fields are constant within each
// consecutive pair so they carry no signal.
func separableSamples(n int) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		label := i % 2
		pair := i / 2
		samples = append(samples, Sample{
			Vector: models.FeatureVector{
				LoanRepaymentStatus:       float64(label),
				LoanTenureMonths:          float64(6 + 3*(pair%10)),
				ElectricityBillPaidOnTime: float64(pair % 2),
				MobileRechargeFrequency:   float64(1 + pair%4),
				IsHighNeed:                float64(pair % 2),
				Age:                       float64(25 + pair%20),
				MonthlyIncome:             float64(8000 + 500*(pair%10)),
				EmploymentType:            float64(pair % 3),
			},
			Label: label,
		})
	}
	return samples
}

func testVersion() models.ModelVersion {
	n := len(models.FeatureOrder)
	means := make([]float64, n)
	stddevs := make([]float64, n)
	coeffs := make([]float64, n)
	for i := range stddevs {
		stddevs[i] = 1
	}
	coeffs[0] = 10 // loan_repayment_status
	return models.ModelVersion{
		ID:           "v-test",
		Algorithm:    AlgorithmSGDLogistic,
		State:        models.VersionActivated,
		Schema:       append([]string(nil), models.FeatureOrder...),
		Coefficients: coeffs,
		Intercept:    -5,
		Means:        means,
		Stddevs:      stddevs,
	}
}

func TestTrainDeterministic(t *testing.T) {
	samples := separableSamples(40)
	cfg := DefaultTrainConfig()

	m1, err := Train(context.Background(), samples, cfg)
	require.NoError(t, err)
	m2, err := Train(context.Background(), samples, cfg)
	require.NoError(t, err)

	assert.Equal(t, m1.Version().Coefficients, m2.Version().Coefficients)
	assert.Equal(t, m1.Version().Intercept, m2.Version().Intercept)
	assert.NotEqual(t, m1.Version().ID, m2.Version().ID)
}

func TestTrainRejectsTooFewSamples(t *testing.T) {
	_, err := Train(context.Background(), separableSamples(5), DefaultTrainConfig())

	var tf *models.TrainingFailure
	require.ErrorAs(t, err, &tf)
}

func TestTrainRejectsSingleClass(t *testing.T) {
	samples := separableSamples(24)
	for i := range samples {
		samples[i].Label = 1
	}

	_, err := Train(context.Background(), samples, DefaultTrainConfig())

	var tf *models.TrainingFailure
	require.ErrorAs(t, err, &tf)
	assert.Contains(t, tf.Reason, "single-class")
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, separableSamples(40), DefaultTrainConfig())

	var tf *models.TrainingFailure
	require.ErrorAs(t, err, &tf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainLearnsRepaymentDirection(t *testing.T) {
	m, err := Train(context.Background(), separableSamples(60), DefaultTrainConfig())
	require.NoError(t, err)

	good := models.FeatureVector{
		LoanRepaymentStatus: 1, LoanTenureMonths: 12,
		ElectricityBillPaidOnTime: 1, MobileRechargeFrequency: 2,
		IsHighNeed: 0, Age: 30, MonthlyIncome: 10000, EmploymentType: 1,
	}
	bad := good
	bad.LoanRepaymentStatus = 0

	pGood, err := m.Predict(good)
	require.NoError(t, err)
	pBad, err := m.Predict(bad)
	require.NoError(t, err)

	assert.Greater(t, pGood, pBad)
	assert.Greater(t, pGood, 0.0)
	assert.Less(t, pGood, 1.0)
}

func TestPredictDeterministic(t *testing.T) {
	m, err := New(testVersion(), DefaultTrainConfig())
	require.NoError(t, err)

	v := models.FeatureVector{LoanRepaymentStatus: 1, Age: 30, MonthlyIncome: 9000}
	p1, err := m.Predict(v)
	require.NoError(t, err)
	p2, err := m.Predict(v)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
}

func TestPredictSchemaMismatch(t *testing.T) {
	mv := testVersion()
	mv.Schema[0], mv.Schema[1] = mv.Schema[1], mv.Schema[0]
	m, err := New(mv, DefaultTrainConfig())
	require.NoError(t, err)

	_, err = m.Predict(models.FeatureVector{})

	var serr *models.SchemaMismatchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "v-test", serr.ModelVersionID)
}

func TestNewRejectsInconsistentShapes(t *testing.T) {
	mv := testVersion()
	mv.Coefficients = mv.Coefficients[:3]

	_, err := New(mv, DefaultTrainConfig())
	assert.Error(t, err)
}

func TestUpdateReturnsNewCandidate(t *testing.T) {
	base, err := New(testVersion(), DefaultTrainConfig())
	require.NoError(t, err)
	before := append([]float64(nil), base.Version().Coefficients...)

	v := models.FeatureVector{
		LoanRepaymentStatus: 0, LoanTenureMonths: 6,
		ElectricityBillPaidOnTime: 0, MobileRechargeFrequency: 1,
		IsHighNeed: 1, Age: 25, MonthlyIncome: 5000, EmploymentType: 0,
	}
	pBefore, err := base.Predict(v)
	require.NoError(t, err)

	candidate := base.Update(v, 1)

	// receiver untouched
	assert.Equal(t, before, base.Version().Coefficients)
	assert.Equal(t, "v-test", base.Version().ID)

	// candidate is a distinct, unactivated state
	assert.NotEqual(t, base.Version().ID, candidate.Version().ID)
	assert.Equal(t, models.VersionCandidate, candidate.Version().State)
	assert.False(t, candidate.Version().IsActive)
	assert.Equal(t, base.Version().TrainingDataSize+1, candidate.Version().TrainingDataSize)

	// one positive-label step moves the prediction up
	pAfter, err := candidate.Predict(v)
	require.NoError(t, err)
	assert.Greater(t, pAfter, pBefore)
}

func TestEvaluatePerfectSeparation(t *testing.T) {
	m, err := New(testVersion(), DefaultTrainConfig())
	require.NoError(t, err)

	samples := []Sample{
		{Vector: models.FeatureVector{LoanRepaymentStatus: 1}, Label: 1},
		{Vector: models.FeatureVector{LoanRepaymentStatus: 1, Age: 40}, Label: 1},
		{Vector: models.FeatureVector{LoanRepaymentStatus: 0}, Label: 0},
		{Vector: models.FeatureVector{LoanRepaymentStatus: 0, Age: 40}, Label: 0},
	}
	accuracy, precision, recall, f1 := m.Evaluate(samples)

	assert.Equal(t, 1.0, accuracy)
	assert.Equal(t, 1.0, precision)
	assert.Equal(t, 1.0, recall)
	assert.Equal(t, 1.0, f1)
}

func TestSyntheticCohortDeterministic(t *testing.T) {
	a := SyntheticCohort(50, 42)
	b := SyntheticCohort(50, 42)
	c := SyntheticCohort(50, 7)

	require.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 50)
}
