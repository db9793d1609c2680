package explain

import (
	"fmt"
	"sort"
	"strings"

	"IncluScore/internal/domain/models"
	"IncluScore/internal/services/scoring"
)

// featureNames maps schema fields to reader-facing names.
var featureNames = map[string]string{
	models.FieldLoanRepaymentStatus:       "loan repayment history",
	models.FieldLoanTenureMonths:          "loan tenure",
	models.FieldElectricityBillPaidOnTime: "utility bill payments",
	models.FieldMobileRechargeFrequency:   "mobile recharge frequency",
	models.FieldIsHighNeed:                "financial need level",
	models.FieldAge:                       "age",
	models.FieldMonthlyIncome:             "monthly income",
	models.FieldEmploymentType:            "employment type",
}

// suggestionText names the directionally-correct improving change per
// feature. Non-actionable fields (age, need flag) have no entry and are
// skipped when building suggestions.
var suggestionText = map[string]string{
	models.FieldLoanRepaymentStatus:       "Make all future loan payments on time to rebuild repayment history.",
	models.FieldElectricityBillPaidOnTime: "Switch to on-time electricity bill payment, for example via auto-pay.",
	models.FieldMobileRechargeFrequency:   "Recharge the mobile connection more regularly to show consistent spending.",
	models.FieldEmploymentType:            "Move toward stable salaried or self-employed work.",
	models.FieldMonthlyIncome:             "Increase monthly income through skill development or additional work.",
	models.FieldLoanTenureMonths:          "Build a longer track record of successful repayment.",
}

const maxSuggestions = 3

// Attribution significance cutoffs, matching the original explainer.
const (
	positiveCutoff = 0.1
	negativeCutoff = -0.05
)

// Score-band boundaries as fractions of the display range.
const (
	excellentFrac = 0.75
	goodFrac      = 0.58
	fairFrac      = 0.42
)

// Explainer computes per-feature impacts and renders the deterministic
// natural-language explanation. Attribution is coefficient times
// standardized value, which for this linear model over zero-mean scaled
// features equals the linear SHAP value. A non-linear model must bring
// its own attribution; pairing it with this explainer is a bug.
type Explainer struct {
	translator *scoring.Translator
	cfg        scoring.TrainConfig
}

func NewExplainer(translator *scoring.Translator, cfg scoring.TrainConfig) *Explainer {
	return &Explainer{translator: translator, cfg: cfg}
}

// Explain returns impacts ranked by absolute magnitude, the explanation
// text, and up to three improvement suggestions. Same inputs always
// produce byte-identical output.
func (e *Explainer) Explain(v models.FeatureVector, mv models.ModelVersion) ([]models.FeatureImpact, string, []string, error) {
	if mv.Algorithm != scoring.AlgorithmSGDLogistic {
		return nil, "", nil, fmt.Errorf("no attribution method for algorithm %q", mv.Algorithm)
	}
	m, err := scoring.New(mv, e.cfg)
	if err != nil {
		return nil, "", nil, err
	}
	raw, err := m.Predict(v)
	if err != nil {
		return nil, "", nil, err
	}

	scaled := m.Standardize(v)
	impacts := make([]models.FeatureImpact, len(mv.Schema))
	for i, name := range mv.Schema {
		impacts[i] = models.FeatureImpact{Feature: name, Impact: mv.Coefficients[i] * scaled[i]}
	}
	// stable sort keeps schema order on ties, so output is reproducible
	sort.SliceStable(impacts, func(i, j int) bool {
		return abs(impacts[i].Impact) > abs(impacts[j].Impact)
	})

	text := e.narrative(v, impacts, raw)
	suggestions := e.suggestions(impacts)
	return impacts, text, suggestions, nil
}

func (e *Explainer) narrative(v models.FeatureVector, impacts []models.FeatureImpact, raw float64) string {
	parts := []string{e.bandSentence(raw)}

	if pos, ok := strongest(impacts, true); ok && pos.Impact > positiveCutoff {
		parts = append(parts, positiveSentence(pos.Feature, v))
	}
	if neg, ok := strongest(impacts, false); ok && neg.Impact < negativeCutoff {
		parts = append(parts, negativeSentence(neg.Feature, v))
	}
	return strings.Join(parts, " ")
}

func (e *Explainer) bandSentence(raw float64) string {
	display := e.translator.Display(raw)
	sc := e.translator.Scale()
	span := float64(sc.Max - sc.Min)
	switch {
	case float64(display-sc.Min) >= excellentFrac*span:
		return "This beneficiary has an excellent credit score."
	case float64(display-sc.Min) >= goodFrac*span:
		return "This beneficiary has a good credit score."
	case float64(display-sc.Min) >= fairFrac*span:
		return "This beneficiary has a fair credit score."
	default:
		return "This beneficiary has a low credit score."
	}
}

func positiveSentence(feature string, v models.FeatureVector) string {
	switch {
	case feature == models.FieldLoanRepaymentStatus && v.LoanRepaymentStatus == 1:
		return "The score is primarily driven by consistent loan repayment history."
	case feature == models.FieldElectricityBillPaidOnTime && v.ElectricityBillPaidOnTime == 1:
		return "Regular utility bill payments significantly boost the score."
	case feature == models.FieldMobileRechargeFrequency && v.MobileRechargeFrequency >= 3:
		return "Frequent mobile recharges indicate financial stability."
	case feature == models.FieldEmploymentType && v.EmploymentType == models.EmploymentSalaried:
		return "Salaried employment provides a strong creditworthiness foundation."
	case feature == models.FieldMonthlyIncome && v.MonthlyIncome >= 15000:
		return "Higher monthly income contributes positively to the score."
	default:
		return fmt.Sprintf("Strong %s contributes most to the positive score.", featureNames[feature])
	}
}

func negativeSentence(feature string, v models.FeatureVector) string {
	switch {
	case feature == models.FieldLoanRepaymentStatus && v.LoanRepaymentStatus == 0:
		return "The main concern is the loan repayment history; improving it will significantly boost the score."
	case feature == models.FieldElectricityBillPaidOnTime && v.ElectricityBillPaidOnTime == 0:
		return "Paying utility bills on time would improve creditworthiness significantly."
	case feature == models.FieldMobileRechargeFrequency && v.MobileRechargeFrequency <= 2:
		return "More regular mobile recharges would indicate better financial stability."
	case feature == models.FieldEmploymentType && v.EmploymentType == models.EmploymentUnemployed:
		return "Securing stable employment would greatly improve the credit profile."
	default:
		return fmt.Sprintf("Improving %s would help increase the score.", featureNames[feature])
	}
}

// suggestions emits one improving change per negative-impact feature,
// ordered by impact magnitude, capped at maxSuggestions.
func (e *Explainer) suggestions(impacts []models.FeatureImpact) []string {
	out := make([]string, 0, maxSuggestions)
	for _, fi := range impacts { // already ranked by |impact|
		if fi.Impact >= 0 {
			continue
		}
		text, actionable := suggestionText[fi.Feature]
		if !actionable {
			continue
		}
		out = append(out, text)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func strongest(impacts []models.FeatureImpact, positive bool) (models.FeatureImpact, bool) {
	for _, fi := range impacts {
		if positive && fi.Impact > 0 {
			return fi, true
		}
		if !positive && fi.Impact < 0 {
			return fi, true
		}
	}
	return models.FeatureImpact{}, false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
