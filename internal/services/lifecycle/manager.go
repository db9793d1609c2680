package lifecycle

import (
	"context"
	"sync"
	"time"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	domservice "IncluScore/internal/domain/service"
	"IncluScore/internal/services/scoring"
	applogger "IncluScore/pkg/logger"
)

// Config controls retraining policy and bootstrap behavior.
type Config struct {
	RetrainThreshold int // buffered outcomes that trigger retraining
	BootstrapSize    int // synthetic cohort size when no version exists
	Train            scoring.TrainConfig
}

func DefaultConfig() Config {
	return Config{
		RetrainThreshold: 25,
		BootstrapSize:    100,
		Train:            scoring.DefaultTrainConfig(),
	}
}

// Manager owns the single-active-version invariant. Reads (Predict,
// Active, Snapshot) take the read lock against an immutable model state;
// retraining and activation serialize on trainMu so a half-trained
// candidate is never observable.
type Manager struct {
	cfg     Config
	store   domrepo.ModelStore
	logger  *applogger.Logger
	metrics domrepo.Metrics

	mu     sync.RWMutex
	active *scoring.Model

	trainMu sync.Mutex
	buffer  []models.Outcome
}

func NewManager(cfg Config, store domrepo.ModelStore, logger *applogger.Logger, metrics domrepo.Metrics) *Manager {
	return &Manager{cfg: cfg, store: store, logger: logger, metrics: metrics}
}

// Predict scores against the active version. ErrModelUnavailable when no
// version has been activated yet.
func (m *Manager) Predict(v models.FeatureVector) (float64, error) {
	m.mu.RLock()
	model := m.active
	m.mu.RUnlock()
	if model == nil {
		return 0, models.ErrModelUnavailable
	}
	return model.Predict(v)
}

// Active returns the active version snapshot.
func (m *Manager) Active() (models.ModelVersion, bool) {
	m.mu.RLock()
	model := m.active
	m.mu.RUnlock()
	if model == nil {
		return models.ModelVersion{}, false
	}
	return model.Version(), true
}

// Snapshot returns the active model as one immutable read. Predictions
// and version metadata taken from the returned snapshot always belong to
// the same version; a concurrent activation cannot split them.
func (m *Manager) Snapshot() (domservice.ModelSnapshot, bool) {
	m.mu.RLock()
	model := m.active
	m.mu.RUnlock()
	if model == nil {
		return nil, false
	}
	return model, true
}

// Bootstrap loads the persisted active version, or trains an initial one
// on the deterministic synthetic cohort when none exists.
func (m *Manager) Bootstrap(ctx context.Context) error {
	stored, err := m.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	if stored != nil {
		model, err := scoring.New(*stored, m.cfg.Train)
		if err != nil {
			return err
		}
		m.swap(model)
		m.logger.Info("active model loaded",
			applogger.String("version", stored.ID),
			applogger.Int("training_size", stored.TrainingDataSize))
		return nil
	}

	samples := scoring.SyntheticCohort(m.cfg.BootstrapSize, m.cfg.Train.Seed)
	model, err := scoring.Train(ctx, samples, m.cfg.Train)
	if err != nil {
		return err
	}
	return m.activate(ctx, model)
}

// RecordOutcome buffers a labeled observation. When the buffer reaches
// the configured threshold, retraining runs inline; a retraining failure
// is logged and does not fail the outcome itself.
func (m *Manager) RecordOutcome(ctx context.Context, o models.Outcome) error {
	m.trainMu.Lock()
	m.buffer = append(m.buffer, o)
	n := len(m.buffer)
	m.trainMu.Unlock()
	m.metrics.SetOutcomeBufferSize(n)

	if n >= m.cfg.RetrainThreshold {
		if err := m.Retrain(ctx); err != nil {
			m.logger.Warn("threshold retrain failed, active version untouched", applogger.Error(err))
			m.metrics.RecordError("retrain")
		}
	}
	return nil
}

// BufferedOutcomes reports how many outcomes await incorporation.
func (m *Manager) BufferedOutcomes() int {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()
	return len(m.buffer)
}

// Retrain builds a candidate by applying one partial-fit step per
// buffered outcome to a clone of the active version, evaluates it, and
// activates it atomically. Failure or cancellation discards the
// candidate only; the active version and the buffer stay intact.
func (m *Manager) Retrain(ctx context.Context) error {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	if len(m.buffer) == 0 {
		return &models.TrainingFailure{Reason: "no buffered outcomes"}
	}

	m.mu.RLock()
	base := m.active
	m.mu.RUnlock()

	start := time.Now()
	var candidate *scoring.Model
	if base == nil {
		samples := make([]scoring.Sample, len(m.buffer))
		for i, o := range m.buffer {
			samples[i] = scoring.Sample{Vector: o.Features, Label: o.Creditworthy}
		}
		trained, err := scoring.Train(ctx, samples, m.cfg.Train)
		if err != nil {
			return err
		}
		candidate = trained
	} else {
		candidate = base
		for _, o := range m.buffer {
			select {
			case <-ctx.Done():
				return &models.TrainingFailure{Reason: "training cancelled", Err: ctx.Err()}
			default:
			}
			candidate = candidate.Update(o.Features, o.Creditworthy)
		}
	}

	if err := m.activate(ctx, candidate); err != nil {
		return err
	}

	m.buffer = m.buffer[:0]
	m.metrics.SetOutcomeBufferSize(0)
	m.metrics.RecordLatency("retrain", time.Since(start).Seconds())
	return nil
}

// activate persists the candidate and swaps it in. The swap itself is a
// single pointer assignment under the write lock: readers see either the
// old version or the new one, never zero or two.
func (m *Manager) activate(ctx context.Context, candidate *scoring.Model) error {
	mv := candidate.Version()
	mv.State = models.VersionActivated
	mv.IsActive = true

	activated, err := scoring.New(mv, m.cfg.Train)
	if err != nil {
		return err
	}

	if err := m.store.SaveVersion(ctx, &mv); err != nil {
		return &models.TrainingFailure{Reason: "persist candidate version", Err: err}
	}
	if err := m.store.MarkActive(ctx, mv.ID); err != nil {
		return &models.TrainingFailure{Reason: "mark version active", Err: err}
	}

	m.swap(activated)
	m.metrics.RecordModelActivation(mv.ID)
	m.logger.Info("model version activated",
		applogger.String("version", mv.ID),
		applogger.Int("training_size", mv.TrainingDataSize),
		applogger.Float64("accuracy", mv.Accuracy))
	return nil
}

func (m *Manager) swap(model *scoring.Model) {
	m.mu.Lock()
	m.active = model
	m.mu.Unlock()
}

// Versions lists persisted versions, newest first.
func (m *Manager) Versions(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	return m.store.ListVersions(ctx, limit)
}
