package volume

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// commandRunner runs an inventory command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, ee.Stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// NewResolver returns the inventory resolver for the running platform.
func NewResolver() Resolver {
	switch runtime.GOOS {
	case "darwin":
		return NewDiskutilResolver()
	case "linux":
		return NewLsblkResolver()
	default:
		return &StubResolver{}
	}
}

// StubResolver is the resolver for platforms without a disk inventory query.
type StubResolver struct{}

// Resolve implements Resolver.
func (s *StubResolver) Resolve(ctx context.Context, name string) (Record, error) {
	return Record{}, fmt.Errorf("volume resolution not supported on %s", runtime.GOOS)
}
