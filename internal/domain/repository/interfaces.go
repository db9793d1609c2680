package repository

import (
	"context"
	"time"

	"IncluScore/internal/domain/models"
)

// HistoryStore is the append-only audit trail of persisted score calculations.
type HistoryStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Append(ctx context.Context, rec *models.ScoreHistoryRecord) error
	Query(ctx context.Context, beneficiaryID string, from, to time.Time, limit int) ([]*models.ScoreHistoryRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// ModelStore persists trained model versions and the activation audit.
type ModelStore interface {
	Init(ctx context.Context) error
	SaveVersion(ctx context.Context, mv *models.ModelVersion) error
	MarkActive(ctx context.Context, versionID string) error
	LoadActive(ctx context.Context) (*models.ModelVersion, error)
	ListVersions(ctx context.Context, limit int) ([]*models.ModelVersion, error)
	Close() error
}

// OutcomePublisher ships labeled outcomes to the ingestion topic.
type OutcomePublisher interface {
	Publish(ctx context.Context, o *models.Outcome) error
	Close() error
}

// ScoreCache holds each beneficiary's most recent score report.
type ScoreCache interface {
	SetLatest(ctx context.Context, beneficiaryID string, report *models.ScoreReport) error
	GetLatest(ctx context.Context, beneficiaryID string) (*models.ScoreReport, error)
	Invalidate(ctx context.Context, beneficiaryID string) error
}

// Metrics records engine operational metrics.
type Metrics interface {
	RecordScore(trigger string, risk string)
	RecordSimulation(degraded bool)
	RecordOutcome(status string)
	RecordModelActivation(versionID string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetOutcomeBufferSize(n int)
}
