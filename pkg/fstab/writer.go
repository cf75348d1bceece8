package fstab

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// LastGoodSuffix names the recovery copy of the table kept next to it.
const LastGoodSuffix = ".last-good"

// Writer replaces a mount table through a synced temporary file and rename,
// so readers see either the old or the new table and never a partial one.
type Writer struct {
	// beforeRename runs once the temporary file is durable, before it
	// replaces the target. Tests use it to simulate a crash.
	beforeRename func(tmpPath string) error
}

// NewWriter creates a table writer.
func NewWriter() *Writer {
	return &Writer{}
}

// LastGoodPath returns the recovery copy path for a table path.
func LastGoodPath(path string) string {
	return path + LastGoodSuffix
}

// Write serializes table and atomically replaces path with it.
func (w *Writer) Write(path string, table *Table) error {
	return w.WriteBytes(path, table.Bytes())
}

// WriteBytes atomically replaces path with data. The previous contents are
// first saved to LastGoodPath(path).
func (w *Writer) WriteBytes(path string, data []byte) error {
	logger := log.WithComponent("fstab")
	logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("table_write_start")

	mode := fs.FileMode(0644)
	info, err := os.Stat(path)
	switch {
	case err == nil:
		mode = info.Mode().Perm()
		original, err := os.ReadFile(path)
		if err != nil {
			return errors.IO(err, "read", path)
		}
		lastGood := LastGoodPath(path)
		if err := writeAtomic(lastGood, original, mode, nil); err != nil {
			logger.Error().Err(err).Str("path", lastGood).Msg("last_good_copy_failed")
			return err
		}
		logger.Debug().Str("path", lastGood).Msg("last_good_copy_written")
	case os.IsNotExist(err):
	default:
		return errors.IO(err, "stat", path)
	}

	if err := writeAtomic(path, data, mode, w.beforeRename); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("table_write_failed")
		return err
	}

	if err := verify(path, data); err != nil {
		logger.Error().Err(err).Str("path", path).Str("recovery", LastGoodPath(path)).
			Msg("table_verify_failed")
		return fmt.Errorf("%w (previous table kept at %s)", err, LastGoodPath(path))
	}

	logger.Debug().Str("path", path).Msg("table_write_complete")
	return nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode, beforeRename func(string) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return errors.IO(err, "create temporary file in", dir)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.IO(err, "write", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		return errors.IO(err, "sync", tmpPath)
	}
	if err := tmp.Chmod(mode); err != nil {
		return errors.IO(err, "chmod", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.IO(err, "close", tmpPath)
	}

	if beforeRename != nil {
		if err := beforeRename(tmpPath); err != nil {
			return errors.IO(err, "replace", path)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.IO(err, "rename", path)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		logger := log.WithComponent("fstab")
		logger.Warn().Err(err).Str("dir", dir).Msg("dir_sync_failed")
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// verify reads the replaced table back.
func verify(path string, want []byte) error {
	got, err := os.ReadFile(path)
	if err != nil {
		return errors.IO(err, "read back", path)
	}
	if len(got) == 0 && len(want) > 0 {
		return errors.IO(fmt.Errorf("file is empty"), "verify", path)
	}
	if !bytes.Equal(got, want) {
		return errors.IO(fmt.Errorf("content differs from what was written"), "verify", path)
	}
	return nil
}
