package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
)

// MaxVolumeNameBytes bounds a volume name, matching the longest label
// APFS and ext4 accept.
const MaxVolumeNameBytes = 255

// Validator checks operator supplied input before it reaches the mount table
type Validator struct {
	maxNameBytes int
}

// NewValidator creates a new input validator
func NewValidator(maxNameBytes int) *Validator {
	if maxNameBytes <= 0 {
		maxNameBytes = MaxVolumeNameBytes
	}
	return &Validator{maxNameBytes: maxNameBytes}
}

// ValidateVolumeName rejects names that could not round-trip through a
// hint comment on a single mount table line.
func (v *Validator) ValidateVolumeName(name string) error {
	reason := ""
	switch {
	case name == "":
		reason = "empty"
	case len(name) > v.maxNameBytes:
		reason = "too_long"
	case name != strings.TrimSpace(name):
		reason = "surrounding_space"
	default:
		for _, r := range name {
			if unicode.IsControl(r) {
				reason = "control_character"
				break
			}
			if r == '#' {
				reason = "comment_marker"
				break
			}
		}
	}

	if reason != "" {
		logger := log.WithComponent("security")
		logger.Error().Str("volume", name).Str("reason", reason).
			Msg("security_volume_name_rejected")
		return fmt.Errorf("%w: invalid volume name %q (%s)", errors.ErrUsage, name, reason)
	}
	return nil
}

// ValidateIdentifier accepts identifiers made of ASCII letters, digits and
// dashes, the form every supported platform reports.
func (v *Validator) ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("%w: empty volume identifier", errors.ErrNotFound)
	}
	for _, r := range identifier {
		if r == '-' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			continue
		}
		logger := log.WithComponent("security")
		logger.Error().Str("identifier", identifier).
			Msg("security_identifier_rejected")
		return fmt.Errorf("%w: volume identifier %q contains %q", errors.ErrIO, identifier, r)
	}
	return nil
}

// ValidateTablePath requires an absolute path and refuses to follow an
// existing symlink, since the rename would replace the link itself.
func (v *Validator) ValidateTablePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: mount table path must be absolute: %s", errors.ErrUsage, path)
	}

	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.IO(err, "stat", path)
	case info.Mode()&os.ModeSymlink != 0:
		logger := log.WithComponent("security")
		logger.Error().Str("path", path).Msg("security_table_symlink_rejected")
		return fmt.Errorf("%w: mount table %s is a symlink", errors.ErrUsage, path)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: mount table %s is not a regular file", errors.ErrUsage, path)
	}
	return nil
}

// ValidateTemplate checks that every field of a requested entry is a single
// mount table token.
func (v *Validator) ValidateTemplate(tmpl fstab.Template) error {
	fields := map[string]string{
		"mount point":     tmpl.MountPoint,
		"filesystem type": tmpl.FSType,
	}
	for i, opt := range tmpl.Options {
		fields[fmt.Sprintf("option %d", i+1)] = opt
	}

	for what, value := range fields {
		if value == "" || strings.ContainsAny(value, " \t\r\n#,") {
			return fmt.Errorf("%w: invalid %s %q", errors.ErrUsage, what, value)
		}
	}
	if tmpl.Dump < 0 || tmpl.Pass < 0 {
		return fmt.Errorf("%w: dump and pass must be non-negative", errors.ErrUsage)
	}
	return nil
}
