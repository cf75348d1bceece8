package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	err := Wrap(ErrBusy, "acquire lock")
	assert.EqualError(t, err, "acquire lock: mount table is locked by another process")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestIO(t *testing.T) {
	assert.Nil(t, IO(nil, "write", "/etc/fstab"))

	err := IO(fs.ErrPermission, "write", "/etc/fstab")
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Contains(t, err.Error(), "/etc/fstab")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"usage", fmt.Errorf("no volume name: %w", ErrUsage), ExitUsage},
		{"not found", Wrap(ErrNotFound, "resolve"), ExitNotFound},
		{"ambiguous", Wrap(ErrAmbiguous, "resolve"), ExitAmbiguous},
		{"not configured", Wrap(ErrNotConfigured, "reconcile"), ExitNotConfigured},
		{"conflict", Wrap(ErrConflict, "reconcile"), ExitConflict},
		{"busy", Wrap(ErrBusy, "lock"), ExitBusy},
		{"io", IO(fs.ErrNotExist, "read", "/etc/fstab"), ExitIO},
		{"unclassified", stderrors.New("boom"), ExitIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	seen := map[int]error{}
	for _, ec := range exitCodes {
		if prev, ok := seen[ec.code]; ok {
			t.Fatalf("exit code %d shared by %v and %v", ec.code, prev, ec.err)
		}
		seen[ec.code] = ec.err
	}
}
