// Package fstab reads, edits and atomically rewrites a line-oriented mount
// table while preserving every byte it does not own.
package fstab

import (
	"fmt"
	"strconv"
	"strings"
)

// HintMarker prefixes the owning-volume name inside a comment: "# vol:DataDisk".
const HintMarker = "vol:"

// UUIDPrefix is the device spec form this package rewrites.
const UUIDPrefix = "UUID="

// HintSource records where an entry's owning-volume hint was found.
type HintSource int

const (
	HintNone HintSource = iota
	// HintInline is a trailing comment on the entry's own line
	HintInline
	// HintPreceding is a dedicated comment line directly above the entry
	HintPreceding
)

// Entry is one data line of the mount table.
type Entry struct {
	Spec       string
	MountPoint string
	FSType     string
	Options    []string
	Dump       int
	Pass       int


	Hint       string
	HintSource HintSource
}

// Identifier returns the identifier of a UUID= device spec.
func (e *Entry) Identifier() (string, bool) {
	if !strings.HasPrefix(e.Spec, UUIDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(e.Spec, UUIDPrefix), true
}

// Line is one line of the table. Raw is always the exact serialized text,
// without the line terminator. Entry is nil for passthrough lines.
type Line struct {
	Raw   string
	Entry *Entry
}

// Table is an ordered mount table.
type Table struct {
	Lines []Line

	trailingNewline bool
}

// Template describes an entry an administrator asked to create.
type Template struct {
	MountPoint string
	FSType     string
	Options    []string
	Dump       int
	Pass       int
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Lines:           make([]Line, len(t.Lines)),
		trailingNewline: t.trailingNewline,
	}
	for i, l := range t.Lines {
		c.Lines[i].Raw = l.Raw
		if l.Entry != nil {
			e := *l.Entry
			e.Options = append([]string(nil), l.Entry.Options...)
			c.Lines[i].Entry = &e
		}
	}
	return c
}

// Entries returns the line indexes of all data entries, in file order.
func (t *Table) Entries() []int {
	var idx []int
	for i, l := range t.Lines {
		if l.Entry != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Bytes serializes the table.
func (t *Table) Bytes() []byte {
	var b strings.Builder
	for i, l := range t.Lines {
		b.WriteString(l.Raw)
		if i < len(t.Lines)-1 || t.trailingNewline {
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// SetIdentifier points the entry at line i to identifier. Only the
// identifier text changes; spacing, options and comments stay as they were.
func (t *Table) SetIdentifier(i int, identifier string) error {
	l := &t.Lines[i]
	if l.Entry == nil {
		return fmt.Errorf("line %d is not an entry", i+1)
	}
	if _, ok := l.Entry.Identifier(); !ok {
		return fmt.Errorf("line %d: device spec %q is not %s<identifier>", i+1, l.Entry.Spec, UUIDPrefix)
	}

	start := len(l.Raw) - len(strings.TrimLeft(l.Raw, " \t"))
	if !strings.HasPrefix(l.Raw[start:], l.Entry.Spec) {
		return fmt.Errorf("line %d: device spec not at start of line", i+1)
	}

	spec := UUIDPrefix + identifier
	l.Raw = l.Raw[:start] + spec + l.Raw[start+len(l.Entry.Spec):]
	l.Entry.Spec = spec
	return nil
}

// SetHint appends an owning-volume hint comment to the entry at line i.
func (t *Table) SetHint(i int, volume string) error {
	l := &t.Lines[i]
	if l.Entry == nil {
		return fmt.Errorf("line %d is not an entry", i+1)
	}
	if l.Entry.HintSource != HintNone {
		return fmt.Errorf("line %d already carries hint %q", i+1, l.Entry.Hint)
	}

	body := strings.TrimRight(l.Raw, "\r")
	cr := l.Raw[len(body):]
	l.Raw = strings.TrimRight(body, " \t") + " " + hintComment(volume) + cr
	l.Entry.Hint = volume
	l.Entry.HintSource = HintInline
	return nil
}

// Append adds a new hinted entry built from tmpl at the end of the table and
// returns its line index.
func (t *Table) Append(spec string, tmpl Template, volume string) int {
	options := tmpl.Options
	if len(options) == 0 {
		options = []string{"defaults"}
	}
	e := &Entry{
		Spec:       spec,
		MountPoint: tmpl.MountPoint,
		FSType:     tmpl.FSType,
		Options:    append([]string(nil), options...),
		Dump:       tmpl.Dump,
		Pass:       tmpl.Pass,
		Hint:       volume,
		HintSource: HintInline,
	}
	raw := strings.Join([]string{
		e.Spec, e.MountPoint, e.FSType, strings.Join(e.Options, ","),
		strconv.Itoa(e.Dump), strconv.Itoa(e.Pass),
	}, "\t") + " " + hintComment(volume)

	if t.crlf() {
		last := &t.Lines[len(t.Lines)-1]
		if !t.trailingNewline && !strings.HasSuffix(last.Raw, "\r") {
			last.Raw += "\r"
		}
		raw += "\r"
	}

	t.Lines = append(t.Lines, Line{Raw: raw, Entry: e})
	t.trailingNewline = true
	return len(t.Lines) - 1
}

// crlf reports whether the table's lines end in CR LF.
func (t *Table) crlf() bool {
	return len(t.Lines) > 0 && strings.HasSuffix(t.Lines[0].Raw, "\r")
}

// HintRoundTrips reports whether a hint written for name parses back as
// the same name.
func HintRoundTrips(name string) bool {
	return name != "" && name == strings.TrimSpace(name) && !strings.ContainsAny(name, "#\r\n")
}

func hintComment(volume string) string {
	return "# " + HintMarker + volume
}
