package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
	"IncluScore/internal/services/scoring"
)

func explainVersion() models.ModelVersion {
	return models.ModelVersion{
		ID:        "v-explain",
		Algorithm: scoring.AlgorithmSGDLogistic,
		Schema:    append([]string(nil), models.FeatureOrder...),
		// order: repayment, tenure, electricity, recharge, need, age, income, employment
		Coefficients: []float64{2.0, 0.1, 0.8, 0.3, 0.0, 0.05, 0.4, 0.5},
		Intercept:    0,
		Means:        []float64{0.5, 20, 0.5, 2.5, 0.5, 40, 15000, 1},
		Stddevs:      []float64{0.5, 10, 0.5, 1, 0.5, 10, 5000, 0.8},
	}
}

func strongProfile() models.FeatureVector {
	return models.FeatureVector{
		LoanRepaymentStatus:       1,
		LoanTenureMonths:          30,
		ElectricityBillPaidOnTime: 1,
		MobileRechargeFrequency:   4,
		IsHighNeed:                0,
		Age:                       40,
		MonthlyIncome:             25000,
		EmploymentType:            models.EmploymentSalaried,
	}
}

func weakProfile() models.FeatureVector {
	return models.FeatureVector{
		LoanRepaymentStatus:       0,
		LoanTenureMonths:          6,
		ElectricityBillPaidOnTime: 0,
		MobileRechargeFrequency:   1,
		IsHighNeed:                1,
		Age:                       25,
		MonthlyIncome:             8000,
		EmploymentType:            models.EmploymentUnemployed,
	}
}

func newExplainer() *Explainer {
	tr := scoring.NewTranslator(scoring.DefaultScale(), scoring.DefaultThresholds())
	return NewExplainer(tr, scoring.DefaultTrainConfig())
}

func TestExplainDeterministic(t *testing.T) {
	e := newExplainer()
	mv := explainVersion()

	i1, t1, s1, err := e.Explain(weakProfile(), mv)
	require.NoError(t, err)
	i2, t2, s2, err := e.Explain(weakProfile(), mv)
	require.NoError(t, err)

	assert.Equal(t, i1, i2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, s1, s2)
}

func TestExplainImpactsRankedByMagnitude(t *testing.T) {
	e := newExplainer()

	impacts, _, _, err := e.Explain(weakProfile(), explainVersion())
	require.NoError(t, err)
	require.Len(t, impacts, len(models.FeatureOrder))

	for i := 1; i < len(impacts); i++ {
		prev := impacts[i-1].Impact
		cur := impacts[i].Impact
		if prev < 0 {
			prev = -prev
		}
		if cur < 0 {
			cur = -cur
		}
		assert.GreaterOrEqual(t, prev, cur)
	}
	// repayment dominates the weak profile
	assert.Equal(t, models.FieldLoanRepaymentStatus, impacts[0].Feature)
	assert.InDelta(t, -2.0, impacts[0].Impact, 1e-9)
}

func TestExplainWeakProfileNarrative(t *testing.T) {
	e := newExplainer()

	_, text, suggestions, err := e.Explain(weakProfile(), explainVersion())
	require.NoError(t, err)

	assert.Contains(t, text, "low credit score")
	assert.Contains(t, text, "main concern is the loan repayment history")

	require.Len(t, suggestions, 3)
	assert.Contains(t, suggestions[0], "loan payments on time")
	assert.Contains(t, suggestions[1], "electricity bill")
	assert.Contains(t, suggestions[2], "salaried or self-employed")
}

func TestExplainStrongProfileNarrative(t *testing.T) {
	e := newExplainer()

	_, text, suggestions, err := e.Explain(strongProfile(), explainVersion())
	require.NoError(t, err)

	assert.Contains(t, text, "excellent credit score")
	assert.Contains(t, text, "consistent loan repayment history")
	assert.Empty(t, suggestions)
}

func TestExplainSuggestionsSkipNonActionable(t *testing.T) {
	e := newExplainer()
	mv := explainVersion()
	// make age and need flag the only negative contributors
	mv.Coefficients = []float64{0, 0, 0, 0, -1.0, 1.0, 0, 0}

	_, _, suggestions, err := e.Explain(weakProfile(), mv)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestExplainRejectsUnknownAlgorithm(t *testing.T) {
	e := newExplainer()
	mv := explainVersion()
	mv.Algorithm = "gradient_boosting"

	_, _, _, err := e.Explain(weakProfile(), mv)
	assert.Error(t, err)
}
