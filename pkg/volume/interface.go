package volume

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// Record is a volume as currently reported by the host's disk inventory.
type Record struct {
	Name       string
	Identifier string
	Device     string
}

// Resolver maps a volume name to the volume's current unique identifier.
type Resolver interface {
	// Resolve returns the single volume labelled name. Errors wrap
	// errors.ErrNotFound or errors.ErrAmbiguous.
	Resolve(ctx context.Context, name string) (Record, error)
}

// StaticResolver resolves against a fixed inventory.
type StaticResolver struct {
	Volumes []Record
}

// Resolve implements Resolver.
func (s StaticResolver) Resolve(ctx context.Context, name string) (Record, error) {
	return pick(name, s.Volumes)
}

// SameIdentifier reports whether a and b name the same volume instance.
// RFC 4122 UUIDs compare case-insensitively; anything else (FAT serials,
// ext volume ids without hyphens) compares exactly.
func SameIdentifier(a, b string) bool {
	if a == b {
		return true
	}
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return ua == ub
}

// pick selects the one inventory record labelled name.
func pick(name string, inventory []Record) (Record, error) {
	var matches []Record
	for _, r := range inventory {
		if r.Name == name {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return Record{}, fmt.Errorf("%w: no volume named %q", errors.ErrNotFound, name)
	case 1:
		if matches[0].Identifier == "" {
			return Record{}, fmt.Errorf("%w: volume %q (%s) reports no identifier",
				errors.ErrNotFound, name, matches[0].Device)
		}
		return matches[0], nil
	default:
		devices := make([]string, 0, len(matches))
		for _, m := range matches {
			devices = append(devices, m.Device)
		}
		sort.Strings(devices)
		return Record{}, fmt.Errorf("%w: %d volumes named %q (%s)",
			errors.ErrAmbiguous, len(matches), name, strings.Join(devices, ", "))
	}
}
