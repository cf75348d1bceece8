// Package pipeline runs one reconciliation pass as a fixed sequence of
// states: validate, resolve, lock, read, reconcile, backup, write. Any
// failure ends the pass in StateFailed before the write state, so a failed
// pass never changes the mount table.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/journal"
	"github.com/mgreiner/update-fstab-uuid/pkg/lock"
	"github.com/mgreiner/update-fstab-uuid/pkg/metrics"
	"github.com/mgreiner/update-fstab-uuid/pkg/reconcile"
	"github.com/mgreiner/update-fstab-uuid/pkg/security"
	"github.com/mgreiner/update-fstab-uuid/pkg/storage"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
)

// Config holds the dependencies of a Machine. Journal, Backup and Metrics
// are optional.
type Config struct {
	Resolver  volume.Resolver
	Validator *security.Validator
	Writer    *fstab.Writer

	// LockPath defaults to the table path plus ".lock"
	LockPath    string
	LockTimeout time.Duration

	Journal Journal

	Backup       Uploader
	BackupPrefix string
	Hostname     string

	Metrics         *metrics.Metrics
	MetricsTextfile string
}

// Machine holds dependencies for pass transitions
type Machine struct {
	cfg Config
	now func() time.Time
}

// NewMachine creates a new pass machine with dependencies
func NewMachine(cfg Config) *Machine {
	if cfg.Validator == nil {
		cfg.Validator = security.NewValidator(0)
	}
	if cfg.Writer == nil {
		cfg.Writer = fstab.NewWriter()
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = lock.DefaultTimeout
	}
	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
	}
	return &Machine{cfg: cfg, now: time.Now}
}

// pass is the working state of one run
type pass struct {
	req  *Request
	resp *Response

	lock     *lock.FileLock
	original []byte
	existed  bool
	table    *fstab.Table
	edited   *fstab.Table
}

type transition struct {
	state  string
	handle func(ctx context.Context, p *pass) error
}

func (m *Machine) transitions() []transition {
	return []transition{
		{StateValidate, m.handleValidate},
		{StateResolve, m.handleResolve},
		{StateLock, m.handleLock},
		{StateRead, m.handleRead},
		{StateReconcile, m.handleReconcile},
		{StateBackup, m.handleBackup},
		{StateWrite, m.handleWrite},
	}
}

// Run executes one reconciliation pass. The returned Response is never nil.
func (m *Machine) Run(ctx context.Context, req Request) (*Response, error) {
	start := m.now()
	p := &pass{
		req: &req,
		resp: &Response{
			RunID:     uuid.NewString(),
			Volume:    req.Volume,
			TablePath: req.TablePath,
			DryRun:    req.DryRun,
		},
	}

	logger := log.WithVolume(req.Volume).With().Str("component", "pipeline").Str("run_id", p.resp.RunID).Logger()
	logger.Info().Str("table", req.TablePath).Bool("dry_run", req.DryRun).Msg("pass_start")

	var err error
	for _, t := range m.transitions() {
		p.resp.State = t.state
		logger.Debug().Str("state", t.state).Msg("pipeline_state_enter")
		if err = t.handle(ctx, p); err != nil {
			break
		}
	}

	if relErr := p.lock.Release(); relErr != nil {
		logger.Warn().Err(relErr).Msg("lock_release_failed")
	}

	if err != nil {
		p.resp.FailedState = p.resp.State
		p.resp.State = StateFailed
		logger.Error().Err(err).Str("state", p.resp.FailedState).Int("exit_code", errors.ExitCode(err)).
			Msg("pass_failed")
	} else {
		p.resp.State = StateComplete
		logger.Info().Str("action", string(p.resp.Change.Action)).Bool("written", p.resp.Written).
			Msg("pass_complete")
	}

	m.finish(ctx, p.resp, err, m.now().Sub(start))
	return p.resp, err
}

func (m *Machine) handleValidate(ctx context.Context, p *pass) error {
	if err := m.cfg.Validator.ValidateVolumeName(p.req.Volume); err != nil {
		return err
	}
	if err := m.cfg.Validator.ValidateTablePath(p.req.TablePath); err != nil {
		return err
	}
	if p.req.Template != nil {
		return m.cfg.Validator.ValidateTemplate(*p.req.Template)
	}
	return nil
}

func (m *Machine) handleResolve(ctx context.Context, p *pass) error {
	record, err := m.cfg.Resolver.Resolve(ctx, p.req.Volume)
	if err != nil {
		return err
	}
	if err := m.cfg.Validator.ValidateIdentifier(record.Identifier); err != nil {
		return err
	}
	p.resp.Record = record
	return nil
}

// handleLock holds the table lock from before the read until Run returns.
func (m *Machine) handleLock(ctx context.Context, p *pass) error {
	if p.req.DryRun {
		return nil
	}
	path := m.cfg.LockPath
	if path == "" {
		path = p.req.TablePath + ".lock"
	}
	l, err := lock.Acquire(ctx, path, m.cfg.LockTimeout)
	if err != nil {
		return err
	}
	p.lock = l
	return nil
}

// handleRead treats a missing table as an empty one.
func (m *Machine) handleRead(ctx context.Context, p *pass) error {
	raw, err := os.ReadFile(p.req.TablePath)
	switch {
	case err == nil:
		p.existed = true
	case os.IsNotExist(err):
		logger := log.WithComponent("pipeline")
		logger.Warn().Str("path", p.req.TablePath).Msg("table_missing")
	default:
		return errors.IO(err, "read", p.req.TablePath)
	}

	table, err := fstab.Parse(raw)
	if err != nil {
		return errors.Wrap(err, p.req.TablePath)
	}
	p.original = raw
	p.table = table
	return nil
}

func (m *Machine) handleReconcile(ctx context.Context, p *pass) error {
	edited, change, err := reconcile.Reconcile(p.table, p.resp.Record, reconcile.Options{
		Template: p.req.Template,
		Adopt:    p.req.Adopt,
	})
	p.resp.Change = change
	if err != nil {
		return err
	}

	if i := change.Line - 1; i >= 0 {
		if i < len(p.table.Lines) {
			p.resp.OldLine = p.table.Lines[i].Raw
		}
		p.resp.NewLine = edited.Lines[i].Raw
	}
	p.edited = edited
	return nil
}

// handleBackup ships the pre-edit table off the host. A failed upload is
// logged and does not fail the pass; the local last-good copy remains.
func (m *Machine) handleBackup(ctx context.Context, p *pass) error {
	if m.cfg.Backup == nil || p.req.DryRun || !p.resp.Change.Changed() || !p.existed {
		return nil
	}

	key := storage.BackupKey(m.cfg.BackupPrefix, m.cfg.Hostname, p.resp.RunID, m.now())
	if _, err := m.cfg.Backup.Upload(ctx, key, p.original); err != nil {
		logger := log.WithComponent("pipeline")
		logger.Warn().Err(err).Str("key", key).Msg("table_backup_failed")
		return nil
	}
	p.resp.BackupKey = key
	return nil
}

func (m *Machine) handleWrite(ctx context.Context, p *pass) error {
	if p.req.DryRun || !p.resp.Change.Changed() {
		return nil
	}
	if err := m.cfg.Writer.Write(p.req.TablePath, p.edited); err != nil {
		return err
	}
	p.resp.Written = true
	return nil
}

// finish journals the pass and exports metrics. Neither may change the
// outcome of a pass that already happened.
func (m *Machine) finish(ctx context.Context, resp *Response, runErr error, duration time.Duration) {
	logger := log.WithComponent("pipeline")

	action := string(resp.Change.Action)
	if runErr != nil || action == "" {
		action = "none"
	}

	if m.cfg.Journal != nil {
		run := &journal.Run{
			RunID:         resp.RunID,
			Volume:        resp.Volume,
			TablePath:     resp.TablePath,
			Action:        action,
			Outcome:       journal.OutcomeOK,
			OldIdentifier: resp.Change.OldIdentifier,
			NewIdentifier: resp.Record.Identifier,
			ExitCode:      errors.ExitCode(runErr),
		}
		switch {
		case runErr != nil:
			run.Outcome = journal.OutcomeFailed
			run.ErrorMessage = runErr.Error()
		case resp.DryRun:
			run.Outcome = journal.OutcomeDryRun
		}
		if err := m.cfg.Journal.Record(ctx, run); err != nil {
			logger.Warn().Err(err).Str("run_id", resp.RunID).Msg("journal_record_failed")
		}
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.RecordRun(action, runErr, duration, m.now())
		if m.cfg.MetricsTextfile != "" {
			if err := m.cfg.Metrics.WriteTextfile(m.cfg.MetricsTextfile); err != nil {
				logger.Warn().Err(err).Str("path", m.cfg.MetricsTextfile).Msg("metrics_write_failed")
			}
		}
	}
}
