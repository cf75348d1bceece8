package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/moby/sys/mountinfo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/reconcile"
	"github.com/mgreiner/update-fstab-uuid/pkg/volume"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status [volume-name]",
	Short: "Compare mount table entries with the volumes currently present",
	Long: `Shows, for the given volume or every volume hinted in the mount table, the
identifier the table holds, the identifier the volume reports now, and whether
the mount point is currently mounted. Nothing is written.`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format (text, yaml)")
}

// volumeStatus is one volume as seen by the mount table and the inventory
type volumeStatus struct {
	Volume          string   `yaml:"volume"`
	Line            int      `yaml:"line,omitempty"`
	TableIdentifier string   `yaml:"table_identifier,omitempty"`
	Identifier      string   `yaml:"identifier,omitempty"`
	Device          string   `yaml:"device,omitempty"`
	MountPoint      string   `yaml:"mount_point,omitempty"`
	Options         []string `yaml:"options,omitempty"`
	Mounted         *bool    `yaml:"mounted,omitempty"`
	InSync          bool     `yaml:"in_sync"`
	Problem         string   `yaml:"problem,omitempty"`
}

type tableStatus struct {
	TablePath string         `yaml:"table_path"`
	Volumes   []volumeStatus `yaml:"volumes"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOutput != "text" && statusOutput != "yaml" {
		return fmt.Errorf("%w: unknown output format %q", errors.ErrUsage, statusOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(cfg.FstabPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.IO(err, "read", cfg.FstabPath)
	}
	table, err := fstab.Parse(raw)
	if err != nil {
		return errors.Wrap(err, cfg.FstabPath)
	}

	var names []string
	if len(args) == 1 {
		names = []string{args[0]}
	} else {
		names = hintedVolumes(table)
	}

	report := tableStatus{TablePath: cfg.FstabPath}
	resolver := newResolver()
	for _, name := range names {
		report.Volumes = append(report.Volumes, inspectVolume(context.Background(), resolver, table, name))
	}

	if statusOutput == "yaml" {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

// hintedVolumes returns the distinct volume names hinted in the table.
func hintedVolumes(table *fstab.Table) []string {
	seen := map[string]bool{}
	var names []string
	for _, i := range table.Entries() {
		hint := table.Lines[i].Entry.Hint
		if hint != "" && !seen[hint] {
			seen[hint] = true
			names = append(names, hint)
		}
	}
	sort.Strings(names)
	return names
}

func inspectVolume(ctx context.Context, resolver volume.Resolver, table *fstab.Table, name string) volumeStatus {
	st := volumeStatus{Volume: name}

	for _, i := range table.Entries() {
		e := table.Lines[i].Entry
		if e.Hint != name {
			continue
		}
		st.Line = i + 1
		st.TableIdentifier, _ = e.Identifier()
		st.MountPoint = e.MountPoint
		st.Options = e.Options
		if filepath.IsAbs(e.MountPoint) {
			if mounted, err := mountinfo.Mounted(e.MountPoint); err == nil {
				st.Mounted = &mounted
			}
		}
		break
	}

	record, err := resolver.Resolve(ctx, name)
	if err != nil {
		st.Problem = err.Error()
		return st
	}
	st.Identifier = record.Identifier
	st.Device = record.Device

	_, change, err := reconcile.Reconcile(table, record, reconcile.Options{})
	if err != nil {
		st.Problem = err.Error()
		return st
	}
	st.InSync = !change.Changed()
	if !st.InSync {
		st.Problem = "table holds a stale identifier; run update-fstab-uuid " + name
	}
	return st
}

func printStatus(out io.Writer, report tableStatus) {
	if len(report.Volumes) == 0 {
		fmt.Fprintf(out, "No volumes hinted in %s\n", report.TablePath)
		return
	}

	for _, st := range report.Volumes {
		mark := "✅"
		if !st.InSync {
			mark = "⚠️ "
		}
		fmt.Fprintf(out, "%s %s\n", mark, st.Volume)
		if st.Line > 0 {
			fmt.Fprintf(out, "   table:   line %d UUID=%s on %s\n", st.Line, st.TableIdentifier, st.MountPoint)
		} else {
			fmt.Fprintf(out, "   table:   no entry\n")
		}
		if st.Identifier != "" {
			fmt.Fprintf(out, "   current: UUID=%s (%s)\n", st.Identifier, st.Device)
		}
		if st.Mounted != nil {
			fmt.Fprintf(out, "   mounted: %t\n", *st.Mounted)
		}
		if st.Problem != "" {
			fmt.Fprintf(out, "   problem: %s\n", st.Problem)
		}
	}
}
