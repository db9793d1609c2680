package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"IncluScore/internal/domain/models"
)

// AlgorithmSGDLogistic is the only algorithm this engine trains. The
// linear explainer depends on it; see explain package.
const AlgorithmSGDLogistic = "sgd_logistic"

// TrainConfig controls batch fitting and online updates.
type TrainConfig struct {
	Eta0    float64 // constant learning rate
	Alpha   float64 // L2 regularization strength
	Epochs  int
	Seed    int64   // shuffle seed; makes training reproducible
	Holdout float64 // fraction reserved for evaluation
}

// DefaultTrainConfig mirrors the production classifier setup:
// log-loss SGD, constant learning rate 0.01, alpha 1e-4.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{Eta0: 0.01, Alpha: 0.0001, Epochs: 50, Seed: 42, Holdout: 0.2}
}

// Sample is one labeled training observation.
type Sample struct {
	Vector models.FeatureVector
	Label  int // 1 = creditworthy
}

// Model is an online logistic regression over standardized features.
// A Model is immutable: Update returns a new candidate state and never
// mutates the receiver, so in-flight predictions always see a consistent
// version.
type Model struct {
	version models.ModelVersion
	cfg     TrainConfig
}

// New wraps an existing version. Coefficient/scaler lengths must match
// the stored schema.
func New(mv models.ModelVersion, cfg TrainConfig) (*Model, error) {
	n := len(mv.Schema)
	if n == 0 || len(mv.Coefficients) != n || len(mv.Means) != n || len(mv.Stddevs) != n {
		return nil, fmt.Errorf("model version %s: inconsistent parameter shapes", mv.ID)
	}
	return &Model{version: mv, cfg: cfg}, nil
}

// Version returns the immutable version snapshot.
func (m *Model) Version() models.ModelVersion { return m.version }

// Predict returns the probability of good credit behavior in [0,1].
// Deterministic for a fixed version.
func (m *Model) Predict(v models.FeatureVector) (float64, error) {
	x := v.Values()
	if len(x) != len(m.version.Schema) {
		return 0, &models.SchemaMismatchError{
			ModelVersionID: m.version.ID,
			Want:           m.version.Schema,
			Got:            models.FeatureOrder,
		}
	}
	for i, name := range models.FeatureOrder {
		if m.version.Schema[i] != name {
			return 0, &models.SchemaMismatchError{
				ModelVersionID: m.version.ID,
				Want:           m.version.Schema,
				Got:            models.FeatureOrder,
			}
		}
	}
	return sigmoid(m.decision(x)), nil
}

// Standardize scales a raw vector with the version's fitted scaler.
func (m *Model) Standardize(v models.FeatureVector) []float64 {
	x := v.Values()
	out := make([]float64, len(x))
	for i := range x {
		out[i] = m.scale(x[i], i)
	}
	return out
}

func (m *Model) scale(x float64, i int) float64 {
	sd := m.version.Stddevs[i]
	if sd == 0 {
		return 0
	}
	return (x - m.version.Means[i]) / sd
}

func (m *Model) decision(x []float64) float64 {
	z := m.version.Intercept
	for i, c := range m.version.Coefficients {
		z += c * m.scale(x[i], i)
	}
	return z
}

// Update applies one partial-fit gradient step and returns the resulting
// candidate state. The scaler is frozen; only coefficients move.
func (m *Model) Update(v models.FeatureVector, label int) *Model {
	next := m.version
	next.Coefficients = append([]float64(nil), m.version.Coefficients...)
	next.ID = uuid.NewString()
	next.State = models.VersionCandidate
	next.IsActive = false
	next.TrainingDataSize = m.version.TrainingDataSize + 1
	next.CreatedAt = time.Now().UTC()

	x := m.Standardize(v)
	g := sigmoid(m.decision(v.Values())) - float64(label)
	for i := range next.Coefficients {
		next.Coefficients[i] -= m.cfg.Eta0 * (g*x[i] + m.cfg.Alpha*next.Coefficients[i])
	}
	next.Intercept -= m.cfg.Eta0 * g

	return &Model{version: next, cfg: m.cfg}
}

// Train fits a fresh model on samples: scaler from the training split,
// then epoch-wise SGD with a seeded shuffle, evaluated on the holdout.
// The returned version is a candidate; activation is the lifecycle
// manager's call. Cancelling ctx aborts between epochs.
func Train(ctx context.Context, samples []Sample, cfg TrainConfig) (*Model, error) {
	const minSamples = 10
	if len(samples) < minSamples {
		return nil, &models.TrainingFailure{Reason: fmt.Sprintf("need at least %d samples, got %d", minSamples, len(samples))}
	}
	pos := 0
	for _, s := range samples {
		pos += s.Label
	}
	if pos == 0 || pos == len(samples) {
		return nil, &models.TrainingFailure{Reason: "degenerate training data: single-class labels"}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	shuffled := append([]Sample(nil), samples...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	holdout := int(float64(len(shuffled)) * cfg.Holdout)
	if holdout < 1 {
		holdout = 1
	}
	train, test := shuffled[:len(shuffled)-holdout], shuffled[len(shuffled)-holdout:]

	n := len(models.FeatureOrder)
	means, stddevs := fitScaler(train, n)

	mv := models.ModelVersion{
		ID:               uuid.NewString(),
		Algorithm:        AlgorithmSGDLogistic,
		State:            models.VersionTraining,
		Schema:           append([]string(nil), models.FeatureOrder...),
		Coefficients:     make([]float64, n),
		Means:            means,
		Stddevs:          stddevs,
		TrainingDataSize: len(train),
		CreatedAt:        time.Now().UTC(),
	}
	m := &Model{version: mv, cfg: cfg}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, &models.TrainingFailure{Reason: "training cancelled", Err: ctx.Err()}
		default:
		}
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		for _, s := range train {
			x := m.Standardize(s.Vector)
			g := sigmoid(m.decision(s.Vector.Values())) - float64(s.Label)
			for i := range m.version.Coefficients {
				m.version.Coefficients[i] -= cfg.Eta0 * (g*x[i] + cfg.Alpha*m.version.Coefficients[i])
			}
			m.version.Intercept -= cfg.Eta0 * g
		}
	}

	m.version.Accuracy, m.version.Precision, m.version.Recall, m.version.F1 = evaluate(m, test)
	m.version.State = models.VersionCandidate
	return m, nil
}

// Evaluate scores the model against labeled samples and returns
// accuracy, precision, recall and F1.
func (m *Model) Evaluate(samples []Sample) (accuracy, precision, recall, f1 float64) {
	return evaluate(m, samples)
}

func fitScaler(samples []Sample, n int) (means, stddevs []float64) {
	means = make([]float64, n)
	stddevs = make([]float64, n)
	for _, s := range samples {
		for i, x := range s.Vector.Values() {
			means[i] += x
		}
	}
	for i := range means {
		means[i] /= float64(len(samples))
	}
	for _, s := range samples {
		for i, x := range s.Vector.Values() {
			d := x - means[i]
			stddevs[i] += d * d
		}
	}
	for i := range stddevs {
		stddevs[i] = math.Sqrt(stddevs[i] / float64(len(samples)))
	}
	return means, stddevs
}

func evaluate(m *Model, test []Sample) (accuracy, precision, recall, f1 float64) {
	var tp, fp, tn, fn float64
	for _, s := range test {
		p := sigmoid(m.decision(s.Vector.Values()))
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && s.Label == 1:
			tp++
		case pred == 1 && s.Label == 0:
			fp++
		case pred == 0 && s.Label == 0:
			tn++
		default:
			fn++
		}
	}
	total := tp + fp + tn + fn
	if total > 0 {
		accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return accuracy, precision, recall, f1
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
