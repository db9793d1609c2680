package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncluScore/internal/domain/models"
)

func validAttrs() models.RawAttributes {
	return models.RawAttributes{
		models.FieldLoanRepaymentStatus:       1,
		models.FieldLoanTenureMonths:          24,
		models.FieldElectricityBillPaidOnTime: 1,
		models.FieldMobileRechargeFrequency:   3,
		models.FieldIsHighNeed:                0,
		models.FieldAge:                       30,
		models.FieldMonthlyIncome:             18000.0,
		models.FieldEmploymentType:            "salaried",
	}
}

func TestEncodeValid(t *testing.T) {
	c := NewCodec()

	v, warnings, err := c.Encode(validAttrs())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 1.0, v.LoanRepaymentStatus)
	assert.Equal(t, 24.0, v.LoanTenureMonths)
	assert.Equal(t, 1.0, v.ElectricityBillPaidOnTime)
	assert.Equal(t, 3.0, v.MobileRechargeFrequency)
	assert.Equal(t, 0.0, v.IsHighNeed)
	assert.Equal(t, 30.0, v.Age)
	assert.Equal(t, 18000.0, v.MonthlyIncome)
	assert.Equal(t, float64(models.EmploymentSalaried), v.EmploymentType)
}

func TestEncodeAcceptsStringNumerics(t *testing.T) {
	c := NewCodec()
	attrs := validAttrs()
	attrs[models.FieldAge] = "42"
	attrs[models.FieldMonthlyIncome] = " 9500 "

	v, _, err := c.Encode(attrs)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Age)
	assert.Equal(t, 9500.0, v.MonthlyIncome)
}

func TestEncodeEmploymentLabels(t *testing.T) {
	tests := []struct {
		name     string
		label    interface{}
		want     float64
		warnings int
	}{
		{"salaried", "salaried", models.EmploymentSalaried, 0},
		{"self_employed", "self_employed", models.EmploymentSelfEmployed, 0},
		{"hyphenated", "Self-Employed", models.EmploymentSelfEmployed, 0},
		{"unemployed", "unemployed", models.EmploymentUnemployed, 0},
		{"numeric code", 2, models.EmploymentSalaried, 0},
		{"unknown label coerced", "part_time", models.EmploymentUnemployed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec()
			attrs := validAttrs()
			attrs[models.FieldEmploymentType] = tt.label

			v, warnings, err := c.Encode(attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.EmploymentType)
			assert.Len(t, warnings, tt.warnings)
			if tt.warnings > 0 {
				assert.Equal(t, models.FieldEmploymentType, warnings[0].Field)
			}
		})
	}
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
	}{
		{"binary out of range", models.FieldLoanRepaymentStatus, 2},
		{"negative tenure", models.FieldLoanTenureMonths, -1},
		{"fractional tenure", models.FieldLoanTenureMonths, 3.5},
		{"recharge too low", models.FieldMobileRechargeFrequency, 0},
		{"recharge too high", models.FieldMobileRechargeFrequency, 5},
		{"underage", models.FieldAge, 17},
		{"overage", models.FieldAge, 66},
		{"negative income", models.FieldMonthlyIncome, -100.0},
		{"numeric employment out of range", models.FieldEmploymentType, 5},
		{"non-numeric", models.FieldAge, []string{"nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec()
			attrs := validAttrs()
			attrs[tt.field] = tt.value

			_, _, err := c.Encode(attrs)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEncodeMissingField(t *testing.T) {
	c := NewCodec()
	attrs := validAttrs()
	delete(attrs, models.FieldMonthlyIncome)

	_, _, err := c.Encode(attrs)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.FieldMonthlyIncome, verr.Field)
}
