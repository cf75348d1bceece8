package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgreiner/update-fstab-uuid/pkg/fstab"
	"github.com/mgreiner/update-fstab-uuid/pkg/pipeline"
)

var (
	addMountPoint string
	addFSType     string
	addOptions    string
	addDump       int
	addPass       int
	addDryRun     bool
)

var addEntryCmd = &cobra.Command{
	Use:   "add-entry <volume-name>",
	Short: "Append a hinted mount table entry for a volume if it has none",
	Long: `Resolves the volume and, when the mount table has no entry hinted for it,
appends one built from the given fields:

  UUID=<identifier>  <mount-point>  <fs-type>  <options>  <dump>  <pass>  # vol:<volume-name>

If the table already has the entry this behaves like a normal pass and only
refreshes the identifier.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: runAddEntry,
}

func init() {
	rootCmd.AddCommand(addEntryCmd)
	addEntryCmd.Flags().StringVar(&addMountPoint, "mount-point", "", "Mount point of the new entry (required)")
	addEntryCmd.Flags().StringVar(&addFSType, "fs-type", "", "Filesystem type of the new entry (required)")
	addEntryCmd.Flags().StringVar(&addOptions, "options", "defaults", "Comma separated mount options")
	addEntryCmd.Flags().IntVar(&addDump, "dump", 0, "Dump frequency")
	addEntryCmd.Flags().IntVar(&addPass, "pass", 0, "fsck pass number")
	addEntryCmd.Flags().BoolVar(&addDryRun, "dry-run", false, "Show the change without writing the mount table")
}

func runAddEntry(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tmpl := &fstab.Template{
		MountPoint: addMountPoint,
		FSType:     addFSType,
		Options:    strings.Split(addOptions, ","),
		Dump:       addDump,
		Pass:       addPass,
	}

	machine, cleanup := newMachine(ctx, cfg)
	defer cleanup()

	resp, err := machine.Run(ctx, pipeline.Request{
		Volume:    args[0],
		TablePath: cfg.FstabPath,
		DryRun:    addDryRun,
		Template:  tmpl,
	})
	if err != nil {
		return err
	}

	printResult(cmd, cfg.FstabPath, resp)
	return nil
}
