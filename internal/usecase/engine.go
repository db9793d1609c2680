package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	domservice "IncluScore/internal/domain/service"
	"IncluScore/internal/services/lifecycle"
	"IncluScore/internal/services/scoring"
	applogger "IncluScore/pkg/logger"
)

// ScoringEngine orchestrates one scoring request end to end: encode,
// predict, translate, explain, persist, cache. Simulation shares the
// pipeline but never touches history or the cache.
type ScoringEngine struct {
	codec      domservice.Codec
	manager    *lifecycle.Manager
	translator *scoring.Translator
	explainer  domservice.Explainer
	simulator  domservice.Simulator
	history    domrepo.HistoryStore
	cache      domrepo.ScoreCache
	outcomes   domrepo.OutcomePublisher
	metrics    domrepo.Metrics
	logger     *applogger.Logger
}

func NewScoringEngine(
	codec domservice.Codec,
	manager *lifecycle.Manager,
	translator *scoring.Translator,
	explainer domservice.Explainer,
	simulator domservice.Simulator,
	history domrepo.HistoryStore,
	cache domrepo.ScoreCache,
	outcomes domrepo.OutcomePublisher,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
) *ScoringEngine {
	return &ScoringEngine{
		codec:      codec,
		manager:    manager,
		translator: translator,
		explainer:  explainer,
		simulator:  simulator,
		history:    history,
		cache:      cache,
		outcomes:   outcomes,
		metrics:    metrics,
		logger:     logger,
	}
}

// Score computes a full report for a beneficiary and records it in the
// audit trail. Every calculation is appended; the cache holds the latest.
func (e *ScoringEngine) Score(ctx context.Context, req *models.ScoreRequest) (*models.ScoreReport, error) {
	start := time.Now()

	trigger := models.CalculationTrigger(req.Trigger)
	if !models.ValidScoreTrigger(trigger) {
		return nil, &models.ValidationError{
			Field:   "trigger",
			Value:   req.Trigger,
			Allowed: "new_application, periodic_review, manual_review",
		}
	}

	vector, warnings, err := e.codec.Encode(req.Attributes)
	if err != nil {
		e.metrics.RecordError("encode")
		return nil, err
	}

	// one snapshot for prediction, version id and attribution: a retrain
	// activating mid-request cannot pair a score with the wrong version
	model, ok := e.manager.Snapshot()
	if !ok {
		e.metrics.RecordError("predict")
		return nil, models.ErrModelUnavailable
	}
	raw, err := model.Predict(vector)
	if err != nil {
		e.metrics.RecordError("predict")
		return nil, err
	}

	result := e.translator.Translate(raw, vector.IsHighNeed == 1)

	version := model.Version()
	impacts, explanation, suggestions, err := e.explainer.Explain(vector, version)
	if err != nil {
		e.metrics.RecordError("explain")
		return nil, err
	}

	report := &models.ScoreReport{
		BeneficiaryID:  req.BeneficiaryID,
		Result:         result,
		Features:       vector,
		FeatureValues:  vector.Map(),
		Impacts:        impacts,
		Explanation:    explanation,
		Suggestions:    suggestions,
		Warnings:       warnings,
		ModelVersionID: version.ID,
		CreatedAt:      time.Now().UTC(),
	}

	rec := &models.ScoreHistoryRecord{
		ID:             uuid.NewString(),
		BeneficiaryID:  req.BeneficiaryID,
		Result:         result,
		FeatureValues:  vector.Map(),
		Impacts:        impacts,
		Explanation:    explanation,
		Suggestions:    suggestions,
		Trigger:        trigger,
		ModelVersionID: version.ID,
		CreatedAt:      report.CreatedAt,
	}
	if err := e.history.Append(ctx, rec); err != nil {
		e.metrics.RecordError("history_append")
		return nil, fmt.Errorf("persist score: %w", err)
	}

	if err := e.cache.SetLatest(ctx, req.BeneficiaryID, report); err != nil {
		// cache is best effort; the audit row is already durable
		e.logger.Warn("latest score cache write failed",
			applogger.String("beneficiary", req.BeneficiaryID),
			applogger.Error(err))
	}

	e.metrics.RecordScore(string(trigger), string(result.RiskCategory))
	e.metrics.RecordLatency("score", time.Since(start).Seconds())
	e.logger.Info("score computed",
		applogger.String("beneficiary", req.BeneficiaryID),
		applogger.Int("display_score", result.DisplayScore),
		applogger.String("risk", string(result.RiskCategory)),
		applogger.String("trigger", string(trigger)))
	return report, nil
}

// Simulate previews a hypothetical change set. Nothing is persisted and
// the active model is never touched.
func (e *ScoringEngine) Simulate(ctx context.Context, req *models.SimulateRequest) (*models.SimulateResponse, error) {
	start := time.Now()

	projection, err := e.simulator.Simulate(ctx, domservice.SimulationInput{
		Attributes:    req.CurrentAttributes,
		BaselineScore: req.CurrentScore,
		Changes:       req.Changes,
	})
	if err != nil {
		e.metrics.RecordError("simulate")
		return nil, err
	}

	e.metrics.RecordSimulation(projection.Degraded)
	e.metrics.RecordLatency("simulate", time.Since(start).Seconds())

	return &models.SimulateResponse{
		CurrentScore:   req.CurrentScore,
		ProjectedScore: projection.Result.DisplayScore,
		ScoreChange:    projection.ScoreChange,
		RiskCategory:   string(projection.Result.RiskCategory),
		Confidence:     projection.Result.Confidence,
		Explanation:    projection.Explanation,
		Degraded:       projection.Degraded,
	}, nil
}

// RecordOutcome validates and ships a labeled outcome to the outcomes
// topic. Learning happens asynchronously on the consumer side.
func (e *ScoringEngine) RecordOutcome(ctx context.Context, req *models.OutcomeRequest) error {
	vector, _, err := e.codec.Encode(req.Attributes)
	if err != nil {
		e.metrics.RecordError("encode")
		return err
	}

	outcome := &models.Outcome{
		BeneficiaryID: req.BeneficiaryID,
		Features:      vector,
		Creditworthy:  *req.Creditworthy,
		ObservedAt:    time.Now().UTC(),
	}
	if err := e.outcomes.Publish(ctx, outcome); err != nil {
		if errors.Is(err, models.ErrOutcomeThrottled) {
			e.metrics.RecordOutcome("throttled")
			return err
		}
		e.metrics.RecordOutcome("failed")
		return fmt.Errorf("publish outcome: %w", err)
	}
	e.metrics.RecordOutcome("accepted")
	return nil
}

// History returns audit records for a beneficiary, newest first.
func (e *ScoringEngine) History(ctx context.Context, beneficiaryID string, from, to time.Time, limit int) ([]*models.ScoreHistoryRecord, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return e.history.Query(ctx, beneficiaryID, from, to, limit)
}

// Latest returns the cached latest report, or nil when none is cached.
func (e *ScoringEngine) Latest(ctx context.Context, beneficiaryID string) (*models.ScoreReport, error) {
	return e.cache.GetLatest(ctx, beneficiaryID)
}

// Manager exposes the lifecycle manager for the model admin endpoints.
func (e *ScoringEngine) Manager() *lifecycle.Manager {
	return e.manager
}

// Health pings the audit store.
func (e *ScoringEngine) Health(ctx context.Context) error {
	return e.history.Health(ctx)
}

// Close releases the outcome publisher.
func (e *ScoringEngine) Close() {
	if e.outcomes != nil {
		_ = e.outcomes.Close()
	}
}
