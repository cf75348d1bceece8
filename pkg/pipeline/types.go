package pipeline

import (
	"context"

	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/journal"
	"github.com/mgreiner/update-fstab-uuid/pkg/reconcile"
	"github.com/mgreiner/update-fstab-uuid/pkg/storage"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
)

// Request is the pass input
type Request struct {
	Volume    string
	TablePath string

	// DryRun computes the change without taking the lock or writing anything.
	DryRun bool

	// Adopt and Template widen the reconciler; see reconcile.Options.
	Adopt    bool
	Template *fstab.Template
}

// Response is the pass output (accumulated across states)
type Response struct {
	RunID     string
	Volume    string
	TablePath string
	DryRun    bool

	// From Resolve
	Record volume.Record

	// From Reconcile
	Change  reconcile.Change
	OldLine string
	NewLine string

	// From Backup
	BackupKey string

	// From Write
	Written bool

	// State is the last state entered; StateComplete or StateFailed at the end
	State       string
	FailedState string
}

// State names
const (
	StateValidate  = "validate"
	StateResolve   = "resolve"
	StateLock      = "lock"
	StateRead      = "read"
	StateReconcile = "reconcile"
	StateBackup    = "backup"
	StateWrite     = "write"
	StateComplete  = "complete"
	StateFailed    = "failed"
)

// Journal records finished passes
type Journal interface {
	Record(ctx context.Context, run *journal.Run) error
}

// Uploader ships the pre-edit table off the host
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (*storage.UploadResult, error)
}
