package journal

// Schema defines the SQLite schema for the run journal.
// Each reconciliation pass appends one row to runs.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    volume TEXT NOT NULL,
    table_path TEXT NOT NULL,
    action TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK(outcome IN ('ok', 'dry_run', 'failed')),
    old_identifier TEXT,
    new_identifier TEXT,
    exit_code INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_volume ON runs(volume);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Outcome constants
const (
	OutcomeOK     = "ok"
	OutcomeDryRun = "dry_run"
	OutcomeFailed = "failed"
)

// Run is one journaled reconciliation pass
type Run struct {
	ID            int64
	RunID         string
	Volume        string
	TablePath     string
	Action        string
	Outcome       string
	OldIdentifier string
	NewIdentifier string
	ExitCode      int
	ErrorMessage  string
	CreatedAt     string
}
