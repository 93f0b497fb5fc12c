package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/askari-labs/askari/internal/idgen"
)

// PostgresLogger writes security events and violations to PostgreSQL.
type PostgresLogger struct {
	db *sql.DB
}

// NewPostgresLogger creates an audit logger backed by PostgreSQL.
func NewPostgresLogger(db *sql.DB) *PostgresLogger {
	return &PostgresLogger{db: db}
}

func (l *PostgresLogger) LogSecurityEvent(ctx context.Context, event *SecurityEvent) error {
	id := event.ID
	if id == "" {
		id = idgen.WithPrefix("sev_")
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO security_events
			(id, incident_type, severity, user_id, session_id, ip_address, user_agent,
			 request_path, request_method, response_status, geo_location,
			 is_blocked, risk_score, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::JSONB, NOW())
	`,
		id, event.IncidentType, string(event.Severity), event.UserID, event.SessionID,
		event.IPAddress, event.UserAgent, event.RequestPath, event.RequestMethod,
		event.ResponseStatus, event.GeoLocation, event.IsBlocked, event.RiskScore,
		event.Description, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record security event: %w", err)
	}
	return nil
}

func (l *PostgresLogger) LogRateLimitViolation(ctx context.Context, ip, endpoint string, windowStart time.Time, blockAt int) (*Violation, error) {
	// blockAt <= 0 disables automatic blocking; use an unreachable count.
	threshold := blockAt
	if threshold <= 0 {
		threshold = 1 << 30
	}

	row := l.db.QueryRowContext(ctx, `
		INSERT INTO rate_limit_violations (ip_address, endpoint, violation_count, window_start, last_violation, is_blocked, created_at)
		VALUES ($1, $2, 1, $3, NOW(), false, NOW())
		ON CONFLICT (ip_address, endpoint) DO UPDATE SET
			violation_count = rate_limit_violations.violation_count + 1,
			window_start    = EXCLUDED.window_start,
			last_violation  = NOW(),
			is_blocked      = rate_limit_violations.is_blocked OR rate_limit_violations.violation_count + 1 >= $4
		RETURNING ip_address, endpoint, violation_count, window_start, last_violation, is_blocked, created_at
	`, ip, endpoint, windowStart, threshold)

	v := &Violation{}
	if err := row.Scan(&v.IPAddress, &v.Endpoint, &v.ViolationCount, &v.WindowStart,
		&v.LastViolation, &v.IsBlocked, &v.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert violation: %w", err)
	}
	return v, nil
}

func (l *PostgresLogger) ListEvents(ctx context.Context, filter EventFilter) ([]*SecurityEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, incident_type, severity, COALESCE(user_id, ''), COALESCE(session_id, ''),
		COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_path, ''),
		COALESCE(request_method, ''), COALESCE(response_status, 0), COALESCE(geo_location, ''),
		is_blocked, is_resolved, COALESCE(risk_score, 0), COALESCE(description, ''),
		COALESCE(metadata::TEXT, '{}'), created_at, resolved_at, COALESCE(resolved_by, '')
		FROM security_events WHERE 1=1`
	var args []interface{}

	if filter.IncidentType != "" {
		args = append(args, filter.IncidentType)
		query += " AND incident_type = $" + strconv.Itoa(len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += " AND severity = $" + strconv.Itoa(len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*SecurityEvent
	for rows.Next() {
		e := &SecurityEvent{}
		var severity, metadataJSON string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.IncidentType, &severity, &e.UserID, &e.SessionID,
			&e.IPAddress, &e.UserAgent, &e.RequestPath, &e.RequestMethod, &e.ResponseStatus,
			&e.GeoLocation, &e.IsBlocked, &e.IsResolved, &e.RiskScore, &e.Description,
			&metadataJSON, &e.CreatedAt, &resolvedAt, &e.ResolvedBy); err != nil {
			return nil, err
		}
		e.Severity = Severity(severity)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		_ = json.Unmarshal([]byte(metadataJSON), &e.Metadata)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (l *PostgresLogger) GetViolation(ctx context.Context, ip, endpoint string) (*Violation, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT ip_address, endpoint, violation_count, window_start, last_violation, is_blocked, created_at
		FROM rate_limit_violations WHERE ip_address = $1 AND endpoint = $2
	`, ip, endpoint)

	v := &Violation{}
	err := row.Scan(&v.IPAddress, &v.Endpoint, &v.ViolationCount, &v.WindowStart,
		&v.LastViolation, &v.IsBlocked, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get violation: %w", err)
	}
	return v, nil
}
