package models

import "time"

// Feature field names. Order in FeatureOrder is the model's training
// contract: any change requires a new model version.
const (
	FieldLoanRepaymentStatus       = "loan_repayment_status"
	FieldLoanTenureMonths          = "loan_tenure_months"
	FieldElectricityBillPaidOnTime = "electricity_bill_paid_on_time"
	FieldMobileRechargeFrequency   = "mobile_recharge_frequency"
	FieldIsHighNeed                = "is_high_need"
	FieldAge                       = "age"
	FieldMonthlyIncome             = "monthly_income"
	FieldEmploymentType            = "employment_type"
)

// FeatureOrder is the canonical vector layout.
var FeatureOrder = []string{
	FieldLoanRepaymentStatus,
	FieldLoanTenureMonths,
	FieldElectricityBillPaidOnTime,
	FieldMobileRechargeFrequency,
	FieldIsHighNeed,
	FieldAge,
	FieldMonthlyIncome,
	FieldEmploymentType,
}

// IsFeatureField reports whether name is part of the vector schema.
func IsFeatureField(name string) bool {
	for _, f := range FeatureOrder {
		if f == name {
			return true
		}
	}
	return false
}

// Employment type encoding.
const (
	EmploymentUnemployed   = 0
	EmploymentSelfEmployed = 1
	EmploymentSalaried     = 2
)

// RawAttributes is the loosely-typed attribute map callers submit.
// The feature codec is the only component that reads it.
type RawAttributes map[string]interface{}

// FeatureVector is the fixed-schema numeric record the model consumes.
type FeatureVector struct {
	LoanRepaymentStatus       float64
	LoanTenureMonths          float64
	ElectricityBillPaidOnTime float64
	MobileRechargeFrequency   float64
	IsHighNeed                float64
	Age                       float64
	MonthlyIncome             float64
	EmploymentType            float64
}

// Values returns the vector in canonical FeatureOrder.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.LoanRepaymentStatus,
		v.LoanTenureMonths,
		v.ElectricityBillPaidOnTime,
		v.MobileRechargeFrequency,
		v.IsHighNeed,
		v.Age,
		v.MonthlyIncome,
		v.EmploymentType,
	}
}

// Map returns the vector keyed by canonical field name.
func (v FeatureVector) Map() map[string]float64 {
	vals := v.Values()
	m := make(map[string]float64, len(vals))
	for i, name := range FeatureOrder {
		m[name] = vals[i]
	}
	return m
}

// Warning flags a coercion the codec applied instead of failing.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

type NeedCategory string

const (
	NeedHigh NeedCategory = "high_need"
	NeedLow  NeedCategory = "low_need"
)

// ScoreResult is the translated, human-facing form of a raw model score.
type ScoreResult struct {
	RawScore       float64      `json:"raw_score"`
	DisplayScore   int          `json:"display_score"`
	RiskCategory   RiskCategory `json:"risk_category"`
	NeedCategory   NeedCategory `json:"need_category"`
	Recommendation string       `json:"recommendation"`
	Confidence     float64      `json:"confidence"` // [0,100], distance from decision boundary
}

// FeatureImpact is one feature's signed contribution to a score.
// Impacts are comparable only within a single ScoreResult.
type FeatureImpact struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

// ScoreReport bundles everything a scoring call produces.
type ScoreReport struct {
	BeneficiaryID  string          `json:"beneficiary_id"`
	Result         ScoreResult     `json:"result"`
	Features       FeatureVector   `json:"-"`
	FeatureValues  map[string]float64 `json:"feature_values"`
	Impacts        []FeatureImpact `json:"impacts"`
	Explanation    string          `json:"explanation"`
	Suggestions    []string        `json:"suggestions"`
	Warnings       []Warning       `json:"warnings,omitempty"`
	ModelVersionID string          `json:"model_version_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CalculationTrigger records why a score was computed.
type CalculationTrigger string

const (
	TriggerNewApplication CalculationTrigger = "new_application"
	TriggerPeriodicReview CalculationTrigger = "periodic_review"
	TriggerManualReview   CalculationTrigger = "manual_review"
	TriggerSimulation     CalculationTrigger = "simulation"
)

// ValidTrigger reports whether t is a recognized trigger value.
func ValidTrigger(t CalculationTrigger) bool {
	switch t {
	case TriggerNewApplication, TriggerPeriodicReview, TriggerManualReview, TriggerSimulation:
		return true
	}
	return false
}

// ValidScoreTrigger reports whether t may drive a persisted calculation.
// Simulation previews go through the simulator and are never persisted.
func ValidScoreTrigger(t CalculationTrigger) bool {
	return t != TriggerSimulation && ValidTrigger(t)
}

// ScoreHistoryRecord is the immutable, append-only audit record of one
// persisted scoring calculation.
type ScoreHistoryRecord struct {
	ID             string             `json:"id"`
	BeneficiaryID  string             `json:"beneficiary_id"`
	Result         ScoreResult        `json:"result"`
	FeatureValues  map[string]float64 `json:"feature_values"`
	Impacts        []FeatureImpact    `json:"impacts"`
	Explanation    string             `json:"explanation"`
	Suggestions    []string           `json:"suggestions"`
	Trigger        CalculationTrigger `json:"trigger"`
	ModelVersionID string             `json:"model_version_id"`
	CreatedAt      time.Time          `json:"created_at"`
}

// VersionState is the lifecycle state of a model version.
type VersionState string

const (
	VersionTraining  VersionState = "training"
	VersionCandidate VersionState = "candidate"
	VersionActivated VersionState = "activated"
	VersionDiscarded VersionState = "discarded"
)

// ModelVersion is one trained, versioned instance of the scoring model.
// Coefficients, Means and Stddevs are indexed by Schema order.
type ModelVersion struct {
	ID               string       `json:"id"`
	Algorithm        string       `json:"algorithm"`
	State            VersionState `json:"state"`
	Schema           []string     `json:"schema"`
	Coefficients     []float64    `json:"coefficients"`
	Intercept        float64      `json:"intercept"`
	Means            []float64    `json:"means"`
	Stddevs          []float64    `json:"stddevs"`
	TrainingDataSize int          `json:"training_data_size"`
	Accuracy         float64      `json:"accuracy"`
	Precision        float64      `json:"precision"`
	Recall           float64      `json:"recall"`
	F1               float64      `json:"f1"`
	IsActive         bool         `json:"is_active"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Outcome is one labeled repayment observation feeding online learning.
type Outcome struct {
	BeneficiaryID string        `json:"beneficiary_id"`
	Features      FeatureVector `json:"features"`
	Creditworthy  int           `json:"creditworthy"` // 0 or 1
	ObservedAt    time.Time     `json:"observed_at"`
}

// Projection is the outcome of a what-if simulation. Never persisted.
type Projection struct {
	Result      ScoreResult `json:"result"`
	ScoreChange int         `json:"score_change"`
	Explanation string      `json:"explanation"`
	Degraded    bool        `json:"degraded"`
}
