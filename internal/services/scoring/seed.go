package scoring

import (
	"math/rand"

	"IncluScore/internal/domain/models"
)

var seedIncomes = []float64{5000, 8000, 12000, 15000, 20000, 25000}

// SyntheticCohort generates a deterministic labeled training cohort for
// bootstrap training when no stored model version exists yet. Label
// likelihood follows the observed signal strengths: repayment history
// strongest, then utility payments and salaried employment.
func SyntheticCohort(n int, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, 0, n)

	for i := 0; i < n; i++ {
		v := models.FeatureVector{
			LoanRepaymentStatus:       choice(rng, 0.75),
			LoanTenureMonths:          float64(6 + rng.Intn(19)), // 6-24 months
			ElectricityBillPaidOnTime: choice(rng, 0.70),
			MobileRechargeFrequency:   float64(1 + rng.Intn(4)),
			IsHighNeed:                choice(rng, 0.40),
			Age:                       float64(18 + rng.Intn(48)),
			MonthlyIncome:             seedIncomes[rng.Intn(len(seedIncomes))],
			EmploymentType:            float64(rng.Intn(3)),
		}

		score := 0.0
		if v.LoanRepaymentStatus == 1 {
			score += 3
		}
		if v.ElectricityBillPaidOnTime == 1 {
			score += 2
		}
		if v.MobileRechargeFrequency >= 3 {
			score++
		}
		switch v.EmploymentType {
		case models.EmploymentSalaried:
			score += 2
		case models.EmploymentSelfEmployed:
			score++
		}
		if v.MonthlyIncome >= 15000 {
			score++
		}
		if v.Age >= 25 && v.Age <= 50 {
			score++
		}

		p := score/10.0 + 0.1
		if p > 0.9 {
			p = 0.9
		}
		label := 0
		if rng.Float64() < p {
			label = 1
		}
		samples = append(samples, Sample{Vector: v, Label: label})
	}
	return samples
}

func choice(rng *rand.Rand, pOne float64) float64 {
	if rng.Float64() < pOne {
		return 1
	}
	return 0
}
