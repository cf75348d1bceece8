//go:build !unix

package lock

import (
	"fmt"
	"os"
	"runtime"
)

func tryLock(f *os.File) (bool, error) {
	return false, fmt.Errorf("file locking not supported on %s", runtime.GOOS)
}

func unlock(f *os.File) error {
	return nil
}
