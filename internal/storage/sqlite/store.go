package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/storage"
)

// Store implements AuditStorage using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreSLODefinition persists an SLO definition.
func (s *Store) StoreSLODefinition(ctx context.Context, sloSpec *slo.SLO) error {
	specJSON, err := json.Marshal(sloSpec)
	if err != nil {
		return fmt.Errorf("failed to marshal SLO: %w", err)
	}

	query := `
		INSERT INTO slo_definitions (id, service, sli, target, window, spec_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service = excluded.service,
			sli = excluded.sli,
			target = excluded.target,
			window = excluded.window,
			spec_json = excluded.spec_json,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.ExecContext(ctx, query,
		sloSpec.ID,
		sloSpec.Service,
		string(sloSpec.SLI),
		sloSpec.Target,
		sloSpec.Window,
		string(specJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store SLO definition: %w", err)
	}

	return nil
}

// StoreEvaluation persists one evaluation tick.
func (s *Store) StoreEvaluation(ctx context.Context, result *eval.Result, zone policy.Zone) error {
	burnRatesJSON, err := json.Marshal(result.BurnRates)
	if err != nil {
		return fmt.Errorf("failed to marshal burn rates: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			slo_id, service, sli_value, budget_remaining, zone,
			insufficient_data, burn_rates_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		result.SLOID,
		result.Service,
		result.SLIValue,
		result.BudgetRemaining,
		string(zone),
		result.InsufficientData,
		string(burnRatesJSON),
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store evaluation: %w", err)
	}

	return nil
}

// StoreAlertTransition persists one firing/resolved event.
func (s *Store) StoreAlertTransition(ctx context.Context, ev alert.Event) error {
	query := `
		INSERT INTO alert_transitions (event_id, rule_name, service, severity, status, value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID,
		ev.RuleName,
		ev.Service,
		ev.Severity,
		ev.Status,
		ev.Value,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store alert transition: %w", err)
	}

	return nil
}

// QueryEvaluations retrieves evaluation records with optional filtering.
func (s *Store) QueryEvaluations(ctx context.Context, filter storage.EvalFilter) ([]storage.EvaluationRecord, error) {
	query := `
		SELECT id, slo_id, service, sli_value, budget_remaining, zone,
		       insufficient_data, burn_rates_json, timestamp, created_at
		FROM evaluations
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SLOID != "" {
		query += " AND slo_id = ?"
		args = append(args, filter.SLOID)
	}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Zone != "" {
		query += " AND zone = ?"
		args = append(args, filter.Zone)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var records []storage.EvaluationRecord
	for rows.Next() {
		var record storage.EvaluationRecord
		var burnRatesJSON string

		err := rows.Scan(
			&record.ID,
			&record.SLOID,
			&record.Service,
			&record.SLIValue,
			&record.BudgetRemaining,
			&record.Zone,
			&record.InsufficientData,
			&burnRatesJSON,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(burnRatesJSON), &record.BurnRates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal burn rates: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// QueryTransitions retrieves alert transitions with optional filtering.
func (s *Store) QueryTransitions(ctx context.Context, filter storage.TransitionFilter) ([]storage.TransitionRecord, error) {
	query := `
		SELECT id, event_id, rule_name, service, severity, status, value, timestamp, created_at
		FROM alert_transitions
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.RuleName != "" {
		query += " AND rule_name = ?"
		args = append(args, filter.RuleName)
	}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var records []storage.TransitionRecord
	for rows.Next() {
		var record storage.TransitionRecord

		err := rows.Scan(
			&record.ID,
			&record.EventID,
			&record.RuleName,
			&record.Service,
			&record.Severity,
			&record.Status,
			&record.Value,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
