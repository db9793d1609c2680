package service

import (
	"context"

	"IncluScore/internal/domain/models"
)

// Codec converts loosely-typed beneficiary attributes into the canonical
// feature vector. Warnings report coercions applied instead of failing.
type Codec interface {
	Encode(raw models.RawAttributes) (models.FeatureVector, []models.Warning, error)
}

// ModelSnapshot is one immutable view of an activated model version.
// A prediction and the version metadata read from the same snapshot
// always belong together, even when a new version activates concurrently.
type ModelSnapshot interface {
	Predict(v models.FeatureVector) (float64, error)
	Version() models.ModelVersion
}

// Scorer hands out snapshots of the currently active model version.
type Scorer interface {
	Snapshot() (ModelSnapshot, bool)
}

// Explainer attributes a score to per-feature impacts and renders the
// deterministic explanation plus improvement suggestions.
type Explainer interface {
	Explain(v models.FeatureVector, mv models.ModelVersion) ([]models.FeatureImpact, string, []string, error)
}

// SimulationInput is one what-if request against a baseline.
type SimulationInput struct {
	Attributes    models.RawAttributes
	BaselineScore int // caller-supplied current display score
	Changes       map[string]interface{}
}

// Simulator previews how the engine would score a hypothetical vector.
type Simulator interface {
	Simulate(ctx context.Context, in SimulationInput) (*models.Projection, error)
}
