package journal

import (
	"context"
	"database/sql"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository persists the history of reconciliation passes
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the journal at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	logger := log.WithComponent("journal")
	logger.Debug().Str("db_path", dbPath).Msg("journal_init")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		logger.Error().Err(err).Str("db_path", dbPath).Msg("journal_open_failed")
		return nil, errors.Wrap(err, "failed to open journal")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		logger.Error().Err(err).Str("db_path", dbPath).Msg("journal_schema_failed")
		return nil, errors.Wrap(err, "failed to create journal schema")
	}

	logger.Debug().Str("db_path", dbPath).Msg("journal_ready")
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record appends a run
func (r *Repository) Record(ctx context.Context, run *Run) error {
	logger := log.WithComponent("journal")

	query := `
		INSERT INTO runs (run_id, volume, table_path, action, outcome,
		                  old_identifier, new_identifier, exit_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		run.RunID, run.Volume, run.TablePath, run.Action, run.Outcome,
		run.OldIdentifier, run.NewIdentifier, run.ExitCode, run.ErrorMessage)
	if err != nil {
		logger.Error().Err(err).Str("run_id", run.RunID).Msg("journal_insert_failed")
		return errors.Wrap(err, "failed to record run")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	run.ID = id

	logger.Debug().Str("run_id", run.RunID).Int64("id", id).Str("outcome", run.Outcome).Msg("journal_run_recorded")
	return nil
}

// GetByRunID retrieves a run, or nil if there is none
func (r *Repository) GetByRunID(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT id, run_id, volume, table_path, action, outcome,
		       old_identifier, new_identifier, exit_code, error_message, created_at
		FROM runs WHERE run_id = ?
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query run")
	}
	return run, nil
}

// List returns the most recent runs first. An empty volume lists every
// volume; limit <= 0 means no limit.
func (r *Repository) List(ctx context.Context, volume string, limit int) ([]*Run, error) {
	query := `
		SELECT id, run_id, volume, table_path, action, outcome,
		       old_identifier, new_identifier, exit_code, error_message, created_at
		FROM runs WHERE (? = '' OR volume = ?) ORDER BY id DESC LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, volume, volume, limit)
	if err != nil {
		logger := log.WithComponent("journal")
		logger.Error().Err(err).Msg("journal_list_query_failed")
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var oldID, newID, errorMessage sql.NullString

	err := s.Scan(
		&run.ID, &run.RunID, &run.Volume, &run.TablePath, &run.Action, &run.Outcome,
		&oldID, &newID, &run.ExitCode, &errorMessage, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	run.OldIdentifier = oldID.String
	run.NewIdentifier = newID.String
	run.ErrorMessage = errorMessage.String
	return &run, nil
}
