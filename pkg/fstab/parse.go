package fstab

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// ErrInvalidEncoding is returned for mount tables that are not UTF-8 text.
var ErrInvalidEncoding = fmt.Errorf("%w: mount table is not valid UTF-8", errors.ErrIO)

// Parse decomposes raw mount table text. Lines it cannot interpret as
// entries are kept as passthrough lines, so Parse(raw).Bytes() == raw.
func Parse(raw []byte) (*Table, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidEncoding
	}

	t := &Table{}
	if len(raw) == 0 {
		return t, nil
	}

	text := string(raw)
	if strings.HasSuffix(text, "\n") {
		t.trailingNewline = true
		text = strings.TrimSuffix(text, "\n")
	}

	for _, rawLine := range strings.Split(text, "\n") {
		t.Lines = append(t.Lines, Line{Raw: rawLine, Entry: parseEntry(rawLine)})
	}

	// A dedicated hint line owns the entry directly below it.
	for i := 1; i < len(t.Lines); i++ {
		e := t.Lines[i].Entry
		if e == nil || e.HintSource != HintNone {
			continue
		}
		if name, ok := hintLine(t.Lines[i-1].Raw); ok {
			e.Hint = name
			e.HintSource = HintPreceding
		}
	}
	return t, nil
}

// parseEntry returns nil for comments, blank lines and malformed lines.
func parseEntry(raw string) *Entry {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	body, comment := splitComment(raw)
	fields := strings.Fields(body)
	if len(fields) < 4 || len(fields) > 6 {
		return nil
	}

	e := &Entry{
		Spec:       fields[0],
		MountPoint: fields[1],
		FSType:     fields[2],
		Options:    strings.Split(fields[3], ","),
	}

	var err error
	if len(fields) > 4 {
		if e.Dump, err = strconv.Atoi(fields[4]); err != nil {
			return nil
		}
	}
	if len(fields) > 5 {
		if e.Pass, err = strconv.Atoi(fields[5]); err != nil {
			return nil
		}
	}

	if name, ok := hintFromComment(comment); ok {
		e.Hint = name
		e.HintSource = HintInline
	}
	return e
}

// splitComment splits a data line at the first '#' that begins a word.
func splitComment(raw string) (body, comment string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && (i == 0 || raw[i-1] == ' ' || raw[i-1] == '\t') {
			return raw[:i], raw[i:]
		}
	}
	return raw, ""
}

// hintFromComment finds a "vol:<name>" segment in a trailing comment such
// as "# backup disk # vol:DataDisk".
func hintFromComment(comment string) (string, bool) {
	for _, seg := range strings.Split(comment, "#") {
		seg = strings.TrimSpace(seg)
		if !strings.HasPrefix(seg, HintMarker) {
			continue
		}
		if name := strings.TrimSpace(strings.TrimPrefix(seg, HintMarker)); name != "" {
			return name, true
		}
	}
	return "", false
}

// hintLine reports whether raw is a comment line consisting only of a hint.
func hintLine(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	seg := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
	if !strings.HasPrefix(seg, HintMarker) {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(seg, HintMarker))
	return name, name != ""
}
