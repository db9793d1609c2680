package scoring

import (
	"math"

	"IncluScore/internal/domain/models"
)

// Scale is the displayed score range. Presentation concern; configurable.
type Scale struct {
	Min int
	Max int
}

// Thresholds are raw-score cutoffs for risk buckets: low when
// raw >= Low, medium when raw >= Medium, high otherwise.
type Thresholds struct {
	Low    float64
	Medium float64
}

// DefaultScale is the conventional 300-900 credit band.
func DefaultScale() Scale { return Scale{Min: 300, Max: 900} }

// DefaultThresholds puts the low/medium boundary at 0.65 and the
// medium/high boundary at 0.45.
func DefaultThresholds() Thresholds { return Thresholds{Low: 0.65, Medium: 0.45} }

// recommendations is the exhaustive risk x need matrix. Static lookup;
// every reachable combination has a defined cell.
var recommendations = map[models.RiskCategory]map[models.NeedCategory]string{
	models.RiskLow: {
		models.NeedLow:  "standard_approval",
		models.NeedHigh: "priority_approval",
	},
	models.RiskMedium: {
		models.NeedLow:  "standard_review",
		models.NeedHigh: "assisted_review",
	},
	models.RiskHigh: {
		models.NeedLow:  "enhanced_monitoring",
		models.NeedHigh: "support_program_referral",
	},
}

// Translator maps raw model output onto the human-facing score and the
// risk/need categorization. Thresholds live here and nowhere else.
type Translator struct {
	scale Scale
	th    Thresholds
}

func NewTranslator(scale Scale, th Thresholds) *Translator {
	return &Translator{scale: scale, th: th}
}

// Translate converts a raw [0,1] score plus the need flag into a full
// ScoreResult. Display score is clamped to the configured range.
func (t *Translator) Translate(raw float64, highNeed bool) models.ScoreResult {
	display := t.Display(raw)

	risk := models.RiskHigh
	switch {
	case raw >= t.th.Low:
		risk = models.RiskLow
	case raw >= t.th.Medium:
		risk = models.RiskMedium
	}

	need := models.NeedLow
	if highNeed {
		need = models.NeedHigh
	}

	return models.ScoreResult{
		RawScore:       raw,
		DisplayScore:   display,
		RiskCategory:   risk,
		NeedCategory:   need,
		Recommendation: recommendations[risk][need],
		Confidence:     Confidence(raw),
	}
}

// Display rescales raw onto the display range, rounded and clamped.
func (t *Translator) Display(raw float64) int {
	display := int(math.Round(float64(t.scale.Min) + raw*float64(t.scale.Max-t.scale.Min)))
	if display < t.scale.Min {
		display = t.scale.Min
	}
	if display > t.scale.Max {
		display = t.scale.Max
	}
	return display
}

// Clamp bounds an arbitrary display-scale value to the configured range.
func (t *Translator) Clamp(display int) int {
	if display < t.scale.Min {
		return t.scale.Min
	}
	if display > t.scale.Max {
		return t.scale.Max
	}
	return display
}

// Scale returns the configured display range.
func (t *Translator) Scale() Scale { return t.scale }

// Confidence is the distance of raw from the 0.5 decision boundary,
// rescaled to [0,100]. A principled uncertainty proxy for a calibrated
// probabilistic classifier, not a placeholder.
func Confidence(raw float64) float64 {
	c := math.Abs(raw-0.5) * 200
	if c > 100 {
		c = 100
	}
	return c
}
