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
	applogger "IncluScore/pkg/logger"
)

// CHHistoryStore implements HistoryStore backed by ClickHouse. Records
// are append-only; there is no update path by design.
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, table string) *CHHistoryStore {
	return &CHHistoryStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHHistoryStore) Init(ctx context.Context) error {
	return nil // schema init in pkg/clickhouse via DI
}

func (s *CHHistoryStore) Append(ctx context.Context, rec *models.ScoreHistoryRecord) error {
	start := time.Now()

	features, err := json.Marshal(rec.FeatureValues)
	if err != nil {
		return fmt.Errorf("marshal feature values: %w", err)
	}
	impacts, err := json.Marshal(rec.Impacts)
	if err != nil {
		return fmt.Errorf("marshal impacts: %w", err)
	}
	suggestions, err := json.Marshal(rec.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
        (id, beneficiary_id, raw_score, display_score, risk_category, need_category, recommendation, confidence,
         feature_values, impacts, explanation, suggestions, trigger, model_version_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		rec.BeneficiaryID,
		rec.Result.RawScore,
		rec.Result.DisplayScore,
		string(rec.Result.RiskCategory),
		string(rec.Result.NeedCategory),
		rec.Result.Recommendation,
		rec.Result.Confidence,
		string(features),
		string(impacts),
		rec.Explanation,
		string(suggestions),
		string(rec.Trigger),
		rec.ModelVersionID,
		rec.CreatedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history append error",
				applogger.String("beneficiary", rec.BeneficiaryID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append score history: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse history append ok",
			applogger.String("beneficiary", rec.BeneficiaryID),
			applogger.Int("display_score", rec.Result.DisplayScore),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHHistoryStore) Query(ctx context.Context, beneficiaryID string, from, to time.Time, limit int) ([]*models.ScoreHistoryRecord, error) {
	q := fmt.Sprintf(`SELECT id, beneficiary_id, raw_score, display_score, risk_category, need_category,
            recommendation, confidence, feature_values, impacts, explanation, suggestions, trigger,
            model_version_id, created_at
        FROM %s
        WHERE beneficiary_id = ? AND created_at >= ? AND created_at <= ?
        ORDER BY created_at DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, beneficiaryID, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history query error",
				applogger.String("beneficiary", beneficiaryID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ScoreHistoryRecord, 0, limit)
	for rows.Next() {
		var rec models.ScoreHistoryRecord
		var risk, need, trigger, features, impacts, suggestions string
		if err := rows.Scan(
			&rec.ID,
			&rec.BeneficiaryID,
			&rec.Result.RawScore,
			&rec.Result.DisplayScore,
			&risk,
			&need,
			&rec.Result.Recommendation,
			&rec.Result.Confidence,
			&features,
			&impacts,
			&rec.Explanation,
			&suggestions,
			&trigger,
			&rec.ModelVersionID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score history: %w", err)
		}
		rec.Result.RiskCategory = models.RiskCategory(risk)
		rec.Result.NeedCategory = models.NeedCategory(need)
		rec.Trigger = models.CalculationTrigger(trigger)
		if err := json.Unmarshal([]byte(features), &rec.FeatureValues); err != nil {
			return nil, fmt.Errorf("unmarshal feature values: %w", err)
		}
		if err := json.Unmarshal([]byte(impacts), &rec.Impacts); err != nil {
			return nil, fmt.Errorf("unmarshal impacts: %w", err)
		}
		if err := json.Unmarshal([]byte(suggestions), &rec.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal suggestions: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHHistoryStore) Close() error {
	return nil // connection pool managed by pkg/clickhouse
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)
