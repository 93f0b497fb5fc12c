package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists fraud analyses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed fraud analysis store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, analysis *Analysis) error {
	factorsJSON, err := json.Marshal(analysis.RiskFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal risk factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_analyses (id, user_id, order_id, risk_score, risk_factors, status, rules, recommendation, flagged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		analysis.ID,
		analysis.UserID,
		analysis.OrderID,
		analysis.RiskScore,
		factorsJSON,
		string(analysis.Status),
		pq.Array(analysis.Rules),
		analysis.Recommendation,
		analysis.FlaggedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fraud analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, order_id, risk_score, risk_factors, status, rules,
			COALESCE(recommendation, ''), flagged_at, reviewed_at,
			COALESCE(reviewed_by, ''), COALESCE(notes, '')
		FROM fraud_analyses
		WHERE user_id = $1
		ORDER BY flagged_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Analysis
	for rows.Next() {
		a := &Analysis{}
		var factorsJSON []byte
		var status string
		var rules pq.StringArray
		var reviewedAt sql.NullTime

		if err := rows.Scan(&a.ID, &a.UserID, &a.OrderID, &a.RiskScore, &factorsJSON,
			&status, &rules, &a.Recommendation, &a.FlaggedAt, &reviewedAt,
			&a.ReviewedBy, &a.Notes); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		a.Rules = []string(rules)
		a.RiskFactors = make(map[string]float64)
		_ = json.Unmarshal(factorsJSON, &a.RiskFactors)
		if reviewedAt.Valid {
			t := reviewedAt.Time
			a.ReviewedAt = &t
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, id, reviewer string, status Status, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fraud_analyses
		SET reviewed_at = NOW(), reviewed_by = $2, status = $3, notes = $4
		WHERE id = $1
	`, id, reviewer, string(status), notes)
	if err != nil {
		return fmt.Errorf("failed to mark analysis reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("fraud analysis %s not found", id)
	}
	return nil
}
