package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mgreiner/update-fstab-uuid/internal/config"
	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/journal"
	"github.com/mgreiner/update-fstab-uuid/pkg/metrics"
	"github.com/mgreiner/update-fstab-uuid/pkg/pipeline"
	"github.com/mgreiner/update-fstab-uuid/pkg/storage"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
)

// newResolver is replaced in tests.
var newResolver = volume.NewResolver

// ensureDirectories creates the parent directory of each non-empty path
func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Wrap(err, "failed to create directory for "+p)
		}
	}
	return nil
}

// openJournal opens the run journal, or returns nil when it is disabled.
func openJournal(cfg *config.Config) (*journal.Repository, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	if err := ensureDirectories(cfg.JournalPath); err != nil {
		return nil, err
	}
	return journal.NewRepository(cfg.JournalPath)
}

// newMachine wires a pass machine from configuration. The journal, the S3
// backup and the metrics textfile are best effort: if one cannot be set up
// the pass still runs without it.
func newMachine(ctx context.Context, cfg *config.Config) (*pipeline.Machine, func()) {
	logger := log.WithComponent("commands")

	pcfg := pipeline.Config{
		Resolver:        newResolver(),
		LockPath:        cfg.LockPath(),
		LockTimeout:     cfg.LockTimeout,
		BackupPrefix:    cfg.BackupS3Prefix,
		MetricsTextfile: cfg.MetricsTextfile,
	}

	cleanup := func() {}

	repo, err := openJournal(cfg)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.JournalPath).Msg("journal_unavailable")
	} else if repo != nil {
		pcfg.Journal = repo
		cleanup = func() { repo.Close() }
	}

	if cfg.BackupS3Bucket != "" {
		client, err := storage.NewClient(ctx, cfg.BackupS3Bucket, cfg.BackupS3Region)
		if err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.BackupS3Bucket).Msg("backup_unavailable")
		} else {
			pcfg.Backup = client
		}
	}

	if cfg.MetricsTextfile != "" {
		pcfg.Metrics = metrics.NewMetrics()
	}

	return pipeline.NewMachine(pcfg), cleanup
}
