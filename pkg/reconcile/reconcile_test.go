package reconcile

import (
	"strings"
	"testing"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = `# Managed volumes
UUID=0f8e2a5c-3b1d-4e6f-9a7b-2c4d6e8f0a1b	/	ext4	errors=remount-ro	0	1
UUID=AAAA-1111 / apfs rw,noauto 0 0 # vol:DataDisk

tmpfs /tmp tmpfs defaults 0 0
`

var dataDisk = volume.Record{Name: "DataDisk", Identifier: "BBBB-2222"}

func parse(t *testing.T, raw string) *fstab.Table {
	t.Helper()
	tbl, err := fstab.Parse([]byte(raw))
	require.NoError(t, err)
	return tbl
}

func TestReconcile_UpdatesIdentifier(t *testing.T) {
	in := parse(t, table)

	out, change, err := Reconcile(in, dataDisk, Options{})
	require.NoError(t, err)

	assert.Equal(t, Change{
		Action:        ActionUpdated,
		Volume:        "DataDisk",
		OldIdentifier: "AAAA-1111",
		NewIdentifier: "BBBB-2222",
		Line:          3,
	}, change)
	assert.True(t, change.Changed())
	assert.Equal(t, strings.Replace(table, "UUID=AAAA-1111", "UUID=BBBB-2222", 1), string(out.Bytes()))

	// Input untouched.
	assert.Equal(t, table, string(in.Bytes()))
}

func TestReconcile_MinimalDiff(t *testing.T) {
	in := parse(t, table)
	out, _, err := Reconcile(in, dataDisk, Options{})
	require.NoError(t, err)

	inLines := strings.Split(string(in.Bytes()), "\n")
	outLines := strings.Split(string(out.Bytes()), "\n")
	require.Equal(t, len(inLines), len(outLines))

	diff := 0
	for i := range inLines {
		if inLines[i] != outLines[i] {
			diff++
		}
	}
	assert.Equal(t, 1, diff)
}

func TestReconcile_Idempotent(t *testing.T) {
	first, change, err := Reconcile(parse(t, table), dataDisk, Options{})
	require.NoError(t, err)
	require.Equal(t, ActionUpdated, change.Action)

	second, change, err := Reconcile(parse(t, string(first.Bytes())), dataDisk, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, change.Action)
	assert.False(t, change.Changed())
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestReconcile_Unchanged(t *testing.T) {
	current := volume.Record{Name: "DataDisk", Identifier: "AAAA-1111"}
	out, change, err := Reconcile(parse(t, table), current, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, change.Action)
	assert.Equal(t, table, string(out.Bytes()))
}

func TestReconcile_UUIDCaseIsNotAChange(t *testing.T) {
	raw := "UUID=6d3a8b21-1c4e-4f7a-9b2d-3e5f7a9c1b3d none apfs rw,noauto # vol:Work HD\n"
	target := volume.Record{Name: "Work HD", Identifier: "6D3A8B21-1C4E-4F7A-9B2D-3E5F7A9C1B3D"}

	out, change, err := Reconcile(parse(t, raw), target, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, change.Action)
	assert.Equal(t, raw, string(out.Bytes()))
}

func TestReconcile_PrecedingHint(t *testing.T) {
	raw := "# vol:Work HD\nUUID=A1B2C3D4-E5F6-4711-8899-AABBCCDDEEFF none apfs rw,noauto\n"
	target := volume.Record{Name: "Work HD", Identifier: "11111111-2222-4333-8444-555555555555"}

	out, change, err := Reconcile(parse(t, raw), target, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, change.Action)
	assert.Equal(t, 2, change.Line)
	assert.Equal(t,
		"# vol:Work HD\nUUID=11111111-2222-4333-8444-555555555555 none apfs rw,noauto\n",
		string(out.Bytes()), "hint must not be duplicated")
}

func TestReconcile_PreservesAdministratorOptions(t *testing.T) {
	raw := "UUID=AAAA-1111  /Volumes/Data\tapfs  rw,nobrowse,noowners,noauto  0  2  # vol:DataDisk\n"
	out, _, err := Reconcile(parse(t, raw), dataDisk, Options{})
	require.NoError(t, err)

	e := out.Lines[0].Entry
	assert.Equal(t, []string{"rw", "nobrowse", "noowners", "noauto"}, e.Options)
	assert.Equal(t, 2, e.Pass)
	assert.Equal(t, "UUID=BBBB-2222  /Volumes/Data\tapfs  rw,nobrowse,noowners,noauto  0  2  # vol:DataDisk\n",
		string(out.Bytes()))
}

func TestReconcile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		opts    Options
		wantErr error
	}{
		{
			name:    "no hinted entry",
			raw:     "UUID=AAAA-1111 / apfs rw,noauto 0 0\n",
			wantErr: errors.ErrNotConfigured,
		},
		{
			name:    "empty table",
			raw:     "",
			wantErr: errors.ErrNotConfigured,
		},
		{
			name:    "hint on another volume only",
			raw:     "UUID=AAAA-1111 / apfs rw,noauto 0 0 # vol:OtherDisk\n",
			wantErr: errors.ErrNotConfigured,
		},
		{
			name: "two hinted entries",
			raw: "UUID=AAAA-1111 / apfs rw,noauto 0 0 # vol:DataDisk\n" +
				"# vol:DataDisk\nUUID=CCCC-3333 /data apfs rw 0 0\n",
			wantErr: errors.ErrConflict,
		},
		{
			name:    "hinted entry not addressed by UUID",
			raw:     "LABEL=DataDisk /data ext4 defaults 0 2 # vol:DataDisk\n",
			wantErr: errors.ErrNotConfigured,
		},
		{
			name: "two hinted entries beat a template",
			raw: "UUID=AAAA-1111 / apfs rw 0 0 # vol:DataDisk\n" +
				"UUID=CCCC-3333 /x apfs rw 0 0 # vol:DataDisk\n",
			opts:    Options{Template: &fstab.Template{MountPoint: "none", FSType: "apfs"}},
			wantErr: errors.ErrConflict,
		},
		{
			name: "adopt with two candidates",
			raw: "UUID=BBBB-2222 /a apfs rw 0 0\n" +
				"UUID=BBBB-2222 /b apfs rw 0 0\n",
			opts:    Options{Adopt: true},
			wantErr: errors.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := parse(t, tt.raw)
			out, _, err := Reconcile(in, dataDisk, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, out)
			assert.Equal(t, tt.raw, string(in.Bytes()))
		})
	}
}

func TestReconcile_Adopt(t *testing.T) {
	raw := "tmpfs /tmp tmpfs defaults 0 0\nUUID=BBBB-2222 none apfs rw,noauto\n"

	_, _, err := Reconcile(parse(t, raw), dataDisk, Options{})
	assert.ErrorIs(t, err, errors.ErrNotConfigured, "adoption is opt-in")

	out, change, err := Reconcile(parse(t, raw), dataDisk, Options{Adopt: true})
	require.NoError(t, err)
	assert.Equal(t, ActionAdopted, change.Action)
	assert.Equal(t, 2, change.Line)
	assert.Equal(t, "tmpfs /tmp tmpfs defaults 0 0\nUUID=BBBB-2222 none apfs rw,noauto # vol:DataDisk\n",
		string(out.Bytes()))

	// Once adopted, later passes match by hint.
	_, change, err = Reconcile(parse(t, string(out.Bytes())), dataDisk, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, change.Action)
}

func TestReconcile_AdoptSkipsEntriesHintedForOthers(t *testing.T) {
	raw := "UUID=BBBB-2222 none apfs rw,noauto # vol:Other\n"
	_, _, err := Reconcile(parse(t, raw), dataDisk, Options{Adopt: true})
	assert.ErrorIs(t, err, errors.ErrNotConfigured)
}

func TestReconcile_InsertFromTemplate(t *testing.T) {
	tmpl := &fstab.Template{MountPoint: "none", FSType: "apfs", Options: []string{"rw", "noauto"}}

	out, change, err := Reconcile(parse(t, table), dataDisk, Options{})
	require.NoError(t, err)
	require.Equal(t, ActionUpdated, change.Action, "template is ignored when an entry exists")

	in := parse(t, "tmpfs /tmp tmpfs defaults 0 0\n")
	out, change, err = Reconcile(in, dataDisk, Options{Template: tmpl})
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, change.Action)
	assert.Equal(t, 2, change.Line)
	assert.Equal(t, "tmpfs /tmp tmpfs defaults 0 0\nUUID=BBBB-2222\tnone\tapfs\trw,noauto\t0\t0 # vol:DataDisk\n",
		string(out.Bytes()))

	_, change, err = Reconcile(parse(t, string(out.Bytes())), dataDisk, Options{Template: tmpl})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, change.Action, "a second insert request is a no-op")
}

func TestReconcile_HintSurvivesReparse(t *testing.T) {
	target := volume.Record{Name: "Data Disk", Identifier: "BBBB-2222"}
	tmpl := &fstab.Template{MountPoint: "/Volumes/Data", FSType: "apfs"}

	tests := []struct {
		name string
		raw  string
		opts Options
	}{
		{"adopt", "UUID=BBBB-2222 none apfs rw,noauto\n", Options{Adopt: true}},
		{"insert", "tmpfs /tmp tmpfs defaults 0 0\n", Options{Template: tmpl}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := Reconcile(parse(t, tt.raw), target, tt.opts)
			require.NoError(t, err)

			again := parse(t, string(out.Bytes()))
			next, change, err := Reconcile(again, target, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, ActionUnchanged, change.Action)
			assert.Equal(t, out.Bytes(), next.Bytes())
		})
	}
}

func TestReconcile_RefusesHintThatCannotRoundTrip(t *testing.T) {
	tmpl := &fstab.Template{MountPoint: "/Volumes/Data", FSType: "apfs"}
	raw := "UUID=BBBB-2222 none apfs rw,noauto\n"

	for _, name := range []string{"Data Disk ", " Data Disk", "Data#Disk"} {
		target := volume.Record{Name: name, Identifier: "BBBB-2222"}

		_, _, err := Reconcile(parse(t, raw), target, Options{Adopt: true})
		assert.ErrorIs(t, err, errors.ErrUsage, name)

		_, _, err = Reconcile(parse(t, "tmpfs /tmp tmpfs defaults 0 0\n"), target, Options{Template: tmpl})
		assert.ErrorIs(t, err, errors.ErrUsage, name)
	}
}

func TestChangeString(t *testing.T) {
	c := Change{Action: ActionUpdated, Volume: "DataDisk", OldIdentifier: "AAAA-1111", NewIdentifier: "BBBB-2222", Line: 3}
	assert.Equal(t, "DataDisk: line 3 identifier AAAA-1111 -> BBBB-2222", c.String())

	c.Action = ActionUnchanged
	assert.Contains(t, c.String(), "up to date")
}
