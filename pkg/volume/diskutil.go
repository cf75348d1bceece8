package volume

import (
	"context"
	"fmt"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"howett.net/plist"
)

// DiskutilResolver resolves volume names through diskutil(8) on macOS.
type DiskutilResolver struct {
	run commandRunner
}

// NewDiskutilResolver creates a resolver backed by diskutil.
func NewDiskutilResolver() *DiskutilResolver {
	return &DiskutilResolver{run: runCommand}
}

type diskutilVolume struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	VolumeName       string `plist:"VolumeName"`
	VolumeUUID       string `plist:"VolumeUUID"`
}

type diskutilDisk struct {
	DeviceIdentifier string           `plist:"DeviceIdentifier"`
	VolumeName       string           `plist:"VolumeName"`
	VolumeUUID       string           `plist:"VolumeUUID"`
	Partitions       []diskutilVolume `plist:"Partitions"`
	APFSVolumes      []diskutilVolume `plist:"APFSVolumes"`
}

type diskutilList struct {
	AllDisksAndPartitions []diskutilDisk `plist:"AllDisksAndPartitions"`
}

// Resolve implements Resolver.
func (r *DiskutilResolver) Resolve(ctx context.Context, name string) (Record, error) {
	logger := log.WithComponent("volume")
	logger.Debug().Str("volume", name).Str("source", "diskutil").Msg("resolve_volume_start")

	out, err := r.run(ctx, "diskutil", "list", "-plist")
	if err != nil {
		logger.Error().Err(err).Msg("diskutil_failed")
		return Record{}, errors.Wrap(err, "failed to query disk inventory")
	}

	inventory, err := parseDiskutilList(out)
	if err != nil {
		logger.Error().Err(err).Msg("diskutil_parse_failed")
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

// parseDiskutilList extracts every named volume from `diskutil list -plist`:
// whole-disk filesystems, partitions and APFS volumes.
func parseDiskutilList(data []byte) ([]Record, error) {
	var list diskutilList
	if _, err := plist.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode diskutil output: %w", err)
	}

	seen := make(map[string]bool)
	var records []Record
	add := func(v diskutilVolume) {
		if v.VolumeName == "" || seen[v.DeviceIdentifier] {
			return
		}
		seen[v.DeviceIdentifier] = true
		records = append(records, Record{
			Name:       v.VolumeName,
			Identifier: v.VolumeUUID,
			Device:     v.DeviceIdentifier,
		})
	}

	for _, disk := range list.AllDisksAndPartitions {
		add(diskutilVolume{
			DeviceIdentifier: disk.DeviceIdentifier,
			VolumeName:       disk.VolumeName,
			VolumeUUID:       disk.VolumeUUID,
		})
		for _, p := range disk.Partitions {
			add(p)
		}
		for _, v := range disk.APFSVolumes {
			add(v)
		}
	}
	return records, nil
}
