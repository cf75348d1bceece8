package volume

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// LsblkResolver resolves volume labels through lsblk(8).
type LsblkResolver struct {
	run commandRunner
}

// NewLsblkResolver creates a resolver backed by lsblk.
func NewLsblkResolver() *LsblkResolver {
	return &LsblkResolver{run: runCommand}
}

type lsblkDevice struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Label    *string       `json:"label"`
	UUID     *string       `json:"uuid"`
	Children []lsblkDevice `json:"children"`
}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

// Resolve implements Resolver.
func (r *LsblkResolver) Resolve(ctx context.Context, name string) (Record, error) {
	logger := log.WithComponent("volume")
	logger.Debug().Str("volume", name).Str("source", "lsblk").Msg("resolve_volume_start")

	out, err := r.run(ctx, "lsblk", "--json", "--output", "NAME,PATH,LABEL,UUID")
	if err != nil {
		logger.Error().Err(err).Msg("lsblk_failed")
		return Record{}, errors.Wrap(err, "failed to query block devices")
	}

	inventory, err := parseLsblk(out)
	if err != nil {
		logger.Error().Err(err).Msg("lsblk_parse_failed")
		return Record{}, err
	}

	rec, err := pick(name, inventory)
	if err != nil {
		return Record{}, err
	}
	logger.Debug().Str("volume", name).Str("identifier", rec.Identifier).Str("device", rec.Device).
		Msg("resolve_volume_complete")
	return rec, nil
}

// parseLsblk flattens lsblk's device tree into labelled records.
func parseLsblk(data []byte) ([]Record, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode lsblk output: %w", err)
	}

	var records []Record
	var walk func(devs []lsblkDevice)
	walk = func(devs []lsblkDevice) {
		for _, d := range devs {
			if d.Label != nil && *d.Label != "" {
				rec := Record{Name: *d.Label, Device: d.Path}
				if rec.Device == "" {
					rec.Device = "/dev/" + d.Name
				}
				if d.UUID != nil {
					rec.Identifier = *d.UUID
				}
				records = append(records, rec)
			}
			walk(d.Children)
		}
	}
	walk(out.BlockDevices)
	return records, nil
}
