// Package reconcile decides the single edit that keeps a volume's mount
// table entry pointed at the volume's current identifier.
//
// An entry belongs to a volume only through its owning-volume hint. The
// reconciler updates the identifier of the one hinted entry and never
// touches any other line. It refuses, rather than guesses, when the table
// has no hinted entry or more than one.
package reconcile

import (
	"fmt"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
)

// Action is the kind of edit a pass made.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionUpdated   Action = "updated"
	ActionAdopted   Action = "adopted"
	ActionInserted  Action = "inserted"
)

// Change summarizes the edit applied to the table.
type Change struct {
	Action        Action
	Volume        string
	OldIdentifier string
	NewIdentifier string

	// Line is the 1-based line number of the target entry.
	Line int
}

// Changed reports whether the table needs to be written.
func (c Change) Changed() bool {
	return c.Action != ActionUnchanged
}

func (c Change) String() string {
	switch c.Action {
	case ActionUpdated:
		return fmt.Sprintf("%s: line %d identifier %s -> %s", c.Volume, c.Line, c.OldIdentifier, c.NewIdentifier)
	case ActionAdopted:
		return fmt.Sprintf("%s: line %d adopted (identifier %s)", c.Volume, c.Line, c.NewIdentifier)
	case ActionInserted:
		return fmt.Sprintf("%s: line %d inserted (identifier %s)", c.Volume, c.Line, c.NewIdentifier)
	default:
		return fmt.Sprintf("%s: line %d up to date (identifier %s)", c.Volume, c.Line, c.NewIdentifier)
	}
}

// Options widen what a pass may do beyond updating a hinted entry.
type Options struct {
	// Template, when set, is the administrator's explicit request to create
	// the entry if the table has none for the volume.
	Template *fstab.Template

	// Adopt lets a pass claim a single un-hinted entry whose identifier
	// already equals the volume's current identifier.
	Adopt bool
}

// Reconcile returns a copy of table edited so that exactly one entry maps
// target.Name to target.Identifier. The input table is not modified.
func Reconcile(table *fstab.Table, target volume.Record, opts Options) (*fstab.Table, Change, error) {
	out := table.Clone()
	change := Change{Volume: target.Name, NewIdentifier: target.Identifier}

	hinted := entriesHinting(out, target.Name)
	switch {
	case len(hinted) > 1:
		return nil, change, fmt.Errorf("%w: volume %q is claimed by lines %s",
			errors.ErrConflict, target.Name, lineList(hinted))

	case len(hinted) == 1:
		i := hinted[0]
		change.Line = i + 1
		entry := out.Lines[i].Entry

		current, ok := entry.Identifier()
		if !ok {
			return nil, change, fmt.Errorf("%w: line %d for volume %q uses device spec %q, not %s<identifier>",
				errors.ErrNotConfigured, i+1, target.Name, entry.Spec, fstab.UUIDPrefix)
		}
		change.OldIdentifier = current

		if volume.SameIdentifier(current, target.Identifier) {
			change.Action = ActionUnchanged
			return out, change, nil
		}
		if err := out.SetIdentifier(i, target.Identifier); err != nil {
			return nil, change, err
		}
		change.Action = ActionUpdated
		return out, change, nil
	}

	if (opts.Adopt || opts.Template != nil) && !fstab.HintRoundTrips(target.Name) {
		return nil, change, fmt.Errorf("%w: volume name %q cannot be written as a hint",
			errors.ErrUsage, target.Name)
	}

	if opts.Adopt {
		candidates := unhintedWithIdentifier(out, target.Identifier)
		switch {
		case len(candidates) > 1:
			return nil, change, fmt.Errorf("%w: identifier %s appears on lines %s",
				errors.ErrConflict, target.Identifier, lineList(candidates))
		case len(candidates) == 1:
			i := candidates[0]
			if err := out.SetHint(i, target.Name); err != nil {
				return nil, change, err
			}
			change.Line = i + 1
			change.OldIdentifier, _ = out.Lines[i].Entry.Identifier()
			change.Action = ActionAdopted
			return out, change, nil
		}
	}

	if opts.Template != nil {
		i := out.Append(fstab.UUIDPrefix+target.Identifier, *opts.Template, target.Name)
		change.Line = i + 1
		change.Action = ActionInserted
		return out, change, nil
	}

	return nil, change, fmt.Errorf("%w: no entry carries the hint \"# %s%s\"",
		errors.ErrNotConfigured, fstab.HintMarker, target.Name)
}

func entriesHinting(t *fstab.Table, name string) []int {
	var idx []int
	for _, i := range t.Entries() {
		if t.Lines[i].Entry.Hint == name {
			idx = append(idx, i)
		}
	}
	return idx
}

func unhintedWithIdentifier(t *fstab.Table, identifier string) []int {
	var idx []int
	for _, i := range t.Entries() {
		e := t.Lines[i].Entry
		if e.HintSource != fstab.HintNone {
			continue
		}
		if id, ok := e.Identifier(); ok && volume.SameIdentifier(id, identifier) {
			idx = append(idx, i)
		}
	}
	return idx
}

func lineList(idx []int) string {
	s := ""
	for n, i := range idx {
		if n > 0 {
			s += ", "
		}
		s += fmt.Sprint(i + 1)
	}
	return s
}
