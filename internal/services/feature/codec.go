package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"IncluScore/internal/domain/models"
)

// employmentLabels coerces textual employment types to the canonical
// numeric encoding. Unknown labels fall back to unemployed with a warning
// rather than failing; the pipeline stays total over malformed input.
var employmentLabels = map[string]float64{
	"unemployed":    models.EmploymentUnemployed,
	"self_employed": models.EmploymentSelfEmployed,
	"self-employed": models.EmploymentSelfEmployed,
	"salaried":      models.EmploymentSalaried,
}

// Codec validates and normalizes raw beneficiary attributes into the
// fixed-order feature vector. Pure; no side effects.
type Codec struct{}

func NewCodec() *Codec { return &Codec{} }

// Encode builds the canonical vector from raw attributes. Out-of-range
// values fail with *models.ValidationError; label coercions are surfaced
// as warnings alongside the vector.
func (c *Codec) Encode(raw models.RawAttributes) (models.FeatureVector, []models.Warning, error) {
	var v models.FeatureVector
	var warnings []models.Warning

	binary := func(field string, dst *float64) error {
		val, err := numeric(raw, field)
		if err != nil {
			return err
		}
		if val != 0 && val != 1 {
			return &models.ValidationError{Field: field, Value: val, Allowed: "0 or 1"}
		}
		*dst = val
		return nil
	}

	if err := binary(models.FieldLoanRepaymentStatus, &v.LoanRepaymentStatus); err != nil {
		return v, nil, err
	}
	if err := binary(models.FieldElectricityBillPaidOnTime, &v.ElectricityBillPaidOnTime); err != nil {
		return v, nil, err
	}
	if err := binary(models.FieldIsHighNeed, &v.IsHighNeed); err != nil {
		return v, nil, err
	}

	tenure, err := numeric(raw, models.FieldLoanTenureMonths)
	if err != nil {
		return v, nil, err
	}
	if tenure < 0 || tenure != math.Trunc(tenure) {
		return v, nil, &models.ValidationError{Field: models.FieldLoanTenureMonths, Value: tenure, Allowed: "integer >= 0"}
	}
	v.LoanTenureMonths = tenure

	recharge, err := numeric(raw, models.FieldMobileRechargeFrequency)
	if err != nil {
		return v, nil, err
	}
	if recharge < 1 || recharge > 4 || recharge != math.Trunc(recharge) {
		return v, nil, &models.ValidationError{Field: models.FieldMobileRechargeFrequency, Value: recharge, Allowed: "integer 1-4"}
	}
	v.MobileRechargeFrequency = recharge

	age, err := numeric(raw, models.FieldAge)
	if err != nil {
		return v, nil, err
	}
	if age < 18 || age > 65 || age != math.Trunc(age) {
		return v, nil, &models.ValidationError{Field: models.FieldAge, Value: age, Allowed: "integer 18-65"}
	}
	v.Age = age

	income, err := numeric(raw, models.FieldMonthlyIncome)
	if err != nil {
		return v, nil, err
	}
	if income < 0 {
		return v, nil, &models.ValidationError{Field: models.FieldMonthlyIncome, Value: income, Allowed: ">= 0"}
	}
	v.MonthlyIncome = income

	emp, warn, err := c.employment(raw)
	if err != nil {
		return v, nil, err
	}
	if warn != nil {
		warnings = append(warnings, *warn)
	}
	v.EmploymentType = emp

	return v, warnings, nil
}

func (c *Codec) employment(raw models.RawAttributes) (float64, *models.Warning, error) {
	val, ok := raw[models.FieldEmploymentType]
	if !ok {
		return 0, nil, &models.ValidationError{Field: models.FieldEmploymentType, Value: nil, Allowed: "required"}
	}

	if s, isStr := val.(string); isStr {
		key := strings.ToLower(strings.TrimSpace(s))
		if code, known := employmentLabels[key]; known {
			return code, nil, nil
		}
		return models.EmploymentUnemployed, &models.Warning{
			Field:   models.FieldEmploymentType,
			Message: fmt.Sprintf("unknown employment label %q coerced to unemployed", s),
		}, nil
	}

	n, err := numeric(raw, models.FieldEmploymentType)
	if err != nil {
		return 0, nil, err
	}
	if n != models.EmploymentUnemployed && n != models.EmploymentSelfEmployed && n != models.EmploymentSalaried {
		return 0, nil, &models.ValidationError{Field: models.FieldEmploymentType, Value: n, Allowed: "0, 1 or 2"}
	}
	return n, nil, nil
}

// numeric extracts a field as float64, accepting the types JSON decoding
// and typed callers produce.
func numeric(raw models.RawAttributes, field string) (float64, error) {
	val, ok := raw[field]
	if !ok {
		return 0, &models.ValidationError{Field: field, Value: nil, Allowed: "required"}
	}
	switch n := val.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &models.ValidationError{Field: field, Value: n, Allowed: "numeric"}
		}
		return f, nil
	default:
		return 0, &models.ValidationError{Field: field, Value: val, Allowed: "numeric"}
	}
}
