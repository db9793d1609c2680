package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	pkgch "IncluScore/pkg/clickhouse"
)

// CHModelStore persists model versions in ClickHouse. Versions and
// activation markers are append-only rows; the current active version is
// the one with the newest activation marker.
type CHModelStore struct {
	db              *sql.DB
	versionsTable   string
	activationTable string
}

func NewCHModelStore(ch *pkgch.Client, versionsTable, activationTable string) *CHModelStore {
	return &CHModelStore{db: ch.DB(), versionsTable: versionsTable, activationTable: activationTable}
}

func (s *CHModelStore) Init(ctx context.Context) error {
	return nil // schema init in pkg/clickhouse via DI
}

type modelParams struct {
	Schema       []string  `json:"schema"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Means        []float64 `json:"means"`
	Stddevs      []float64 `json:"stddevs"`
}

func (s *CHModelStore) SaveVersion(ctx context.Context, mv *models.ModelVersion) error {
	params, err := json.Marshal(modelParams{
		Schema:       mv.Schema,
		Coefficients: mv.Coefficients,
		Intercept:    mv.Intercept,
		Means:        mv.Means,
		Stddevs:      mv.Stddevs,
	})
	if err != nil {
		return fmt.Errorf("marshal model params: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
        (id, algorithm, state, params, training_data_size, accuracy, precision, recall, f1, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.versionsTable)
	_, err = s.db.ExecContext(ctx, q,
		mv.ID,
		mv.Algorithm,
		string(mv.State),
		string(params),
		mv.TrainingDataSize,
		mv.Accuracy,
		mv.Precision,
		mv.Recall,
		mv.F1,
		mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save model version: %w", err)
	}
	return nil
}

func (s *CHModelStore) MarkActive(ctx context.Context, versionID string) error {
	q := fmt.Sprintf("INSERT INTO %s (version_id, activated_at) VALUES (?, ?)", s.activationTable)
	if _, err := s.db.ExecContext(ctx, q, versionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark model version active: %w", err)
	}
	return nil
}

func (s *CHModelStore) LoadActive(ctx context.Context) (*models.ModelVersion, error) {
	q := fmt.Sprintf(`SELECT v.id, v.algorithm, v.state, v.params, v.training_data_size,
            v.accuracy, v.precision, v.recall, v.f1, v.created_at
        FROM %s v
        INNER JOIN (
            SELECT version_id FROM %s ORDER BY activated_at DESC LIMIT 1
        ) a ON v.id = a.version_id
        LIMIT 1`, s.versionsTable, s.activationTable)

	row := s.db.QueryRowContext(ctx, q)
	mv, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active model version: %w", err)
	}
	mv.IsActive = true
	mv.State = models.VersionActivated
	return mv, nil
}

func (s *CHModelStore) ListVersions(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	activeID := ""
	if active, err := s.LoadActive(ctx); err == nil && active != nil {
		activeID = active.ID
	}

	q := fmt.Sprintf(`SELECT id, algorithm, state, params, training_data_size,
            accuracy, precision, recall, f1, created_at
        FROM %s ORDER BY created_at DESC LIMIT ?`, s.versionsTable)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ModelVersion, 0, limit)
	for rows.Next() {
		mv, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		mv.IsActive = mv.ID == activeID
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (s *CHModelStore) Close() error {
	return nil // connection pool managed by pkg/clickhouse
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (*models.ModelVersion, error) {
	var mv models.ModelVersion
	var state, params string
	if err := row.Scan(
		&mv.ID,
		&mv.Algorithm,
		&state,
		&params,
		&mv.TrainingDataSize,
		&mv.Accuracy,
		&mv.Precision,
		&mv.Recall,
		&mv.F1,
		&mv.CreatedAt,
	); err != nil {
		return nil, err
	}
	mv.State = models.VersionState(state)

	var p modelParams
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return nil, fmt.Errorf("unmarshal model params: %w", err)
	}
	mv.Schema = p.Schema
	mv.Coefficients = p.Coefficients
	mv.Intercept = p.Intercept
	mv.Means = p.Means
	mv.Stddevs = p.Stddevs
	return &mv, nil
}

var _ domrepo.ModelStore = (*CHModelStore)(nil)
