package simulate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"IncluScore/internal/domain/models"
	domsvc "IncluScore/internal/domain/service"
	"IncluScore/internal/services/scoring"
)

// Per-field point deltas for the degraded heuristic: applied per unit of
// change on the raw field value, income per 1000 of currency capped at
// +-20 points. Non-behavioral fields carry no delta.
var heuristicDeltas = map[string]float64{
	models.FieldLoanRepaymentStatus:       40,
	models.FieldElectricityBillPaidOnTime: 25,
	models.FieldEmploymentType:            15,
	models.FieldMobileRechargeFrequency:   8,
}

const incomeDeltaPerThousand = 1.0
const incomeDeltaCap = 20.0

// degradedMarker tags heuristic output so callers and tests can tell
// approximate answers from model-backed ones.
const degradedMarker = "Approximate projection: the scoring model is unavailable, so fixed per-field adjustments were applied."

// Simulator previews what the live engine would produce for a
// hypothetical vector. The primary path reuses the exact scoring
// pipeline; only model unavailability switches to the heuristic.
type Simulator struct {
	codec      domsvc.Codec
	scorer     domsvc.Scorer
	translator *scoring.Translator
	explainer  domsvc.Explainer
}

func NewSimulator(codec domsvc.Codec, scorer domsvc.Scorer, translator *scoring.Translator, explainer domsvc.Explainer) *Simulator {
	return &Simulator{codec: codec, scorer: scorer, translator: translator, explainer: explainer}
}

// Simulate applies the change map over the baseline attributes and scores
// the hypothetical vector. The delta is computed against the
// caller-supplied baseline display score so it reflects exactly the
// hypothetical edit. Nothing is persisted.
func (s *Simulator) Simulate(ctx context.Context, in domsvc.SimulationInput) (*models.Projection, error) {
	if len(in.Changes) == 0 {
		return nil, models.ErrEmptyChangeSet
	}
	for field := range in.Changes {
		if !models.IsFeatureField(field) {
			return nil, &models.UnknownFieldError{Field: field}
		}
	}

	merged := make(models.RawAttributes, len(in.Attributes))
	for k, v := range in.Attributes {
		merged[k] = v
	}
	for k, v := range in.Changes {
		merged[k] = v
	}

	vec, _, err := s.codec.Encode(merged)
	if err != nil {
		return nil, err
	}

	snap, ok := s.scorer.Snapshot()
	if !ok {
		return s.degraded(in, vec)
	}
	raw, err := snap.Predict(vec)
	if err != nil {
		return nil, err
	}

	result := s.translator.Translate(raw, vec.IsHighNeed == 1)
	change := result.DisplayScore - in.BaselineScore

	explanation := ""
	if _, text, _, eerr := s.explainer.Explain(vec, snap.Version()); eerr == nil {
		explanation = text
	}
	explanation = joinSentences(explanation, deltaSentence(change))

	return &models.Projection{
		Result:      result,
		ScoreChange: change,
		Explanation: explanation,
		Degraded:    false,
	}, nil
}

// degraded computes the heuristic projection: baseline display score plus
// fixed per-field deltas for each changed field, clamped to the display
// range. The projected score is mapped back through the translator so the
// risk bucket and confidence use the same thresholds as the model path.
func (s *Simulator) degraded(in domsvc.SimulationInput, hypothetical models.FeatureVector) (*models.Projection, error) {
	baseVec, _, err := s.codec.Encode(in.Attributes)
	if err != nil {
		return nil, err
	}

	before := baseVec.Map()
	after := hypothetical.Map()

	fields := make([]string, 0, len(in.Changes))
	for f := range in.Changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	delta := 0.0
	for _, f := range fields {
		delta += fieldDelta(f, before[f], after[f])
	}

	projected := s.translator.Clamp(in.BaselineScore + int(math.Round(delta)))
	change := projected - in.BaselineScore

	sc := s.translator.Scale()
	impliedRaw := float64(projected-sc.Min) / float64(sc.Max-sc.Min)
	result := s.translator.Translate(impliedRaw, hypothetical.IsHighNeed == 1)

	explanation := joinSentences(degradedMarker, deltaSentence(change))

	return &models.Projection{
		Result:      result,
		ScoreChange: change,
		Explanation: explanation,
		Degraded:    true,
	}, nil
}

func fieldDelta(field string, before, after float64) float64 {
	diff := after - before
	if diff == 0 {
		return 0
	}
	if field == models.FieldMonthlyIncome {
		d := diff / 1000 * incomeDeltaPerThousand
		if d > incomeDeltaCap {
			d = incomeDeltaCap
		}
		if d < -incomeDeltaCap {
			d = -incomeDeltaCap
		}
		return d
	}
	return heuristicDeltas[field] * diff
}

func deltaSentence(change int) string {
	switch {
	case change > 0:
		return fmt.Sprintf("These improvements could increase the score by %d points.", change)
	case change < 0:
		return fmt.Sprintf("These changes might decrease the score by %d points.", -change)
	default:
		return "These changes would have minimal impact on the current score."
	}
}

func joinSentences(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
