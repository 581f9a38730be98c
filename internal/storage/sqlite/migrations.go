package sqlite

// Schema defines the SQLite database schema.
const Schema = `
-- SLO definitions table
CREATE TABLE IF NOT EXISTS slo_definitions (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	sli TEXT NOT NULL,
	target REAL NOT NULL,
	window TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_slo_service ON slo_definitions(service);

-- Evaluation audit table
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slo_id TEXT NOT NULL,
	service TEXT NOT NULL,
	sli_value REAL NOT NULL,
	budget_remaining REAL NOT NULL,
	zone TEXT NOT NULL,
	insufficient_data BOOLEAN NOT NULL DEFAULT 0,
	burn_rates_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (slo_id) REFERENCES slo_definitions(id)
);

CREATE INDEX IF NOT EXISTS idx_evaluations_slo_id ON evaluations(slo_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_service ON evaluations(service);
CREATE INDEX IF NOT EXISTS idx_evaluations_zone ON evaluations(zone);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(timestamp DESC);

-- Alert transition audit table
CREATE TABLE IF NOT EXISTS alert_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL DEFAULT '',
	rule_name TEXT NOT NULL,
	service TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	value REAL NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transitions_rule ON alert_transitions(rule_name);
CREATE INDEX IF NOT EXISTS idx_transitions_service ON alert_transitions(service);
CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON alert_transitions(timestamp DESC);
`
