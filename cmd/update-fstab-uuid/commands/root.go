package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mgreiner/update-fstab-uuid/internal/config"
	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/lock"
	"github.com/mgreiner/update-fstab-uuid/pkg/pipeline"
	"github.com/mgreiner/update-fstab-uuid/pkg/reconcile"
)

var (
	passDryRun bool
	passAdopt  bool
)

var rootCmd = &cobra.Command{
	Use:   "update-fstab-uuid [volume-name]",
	Short: "Keep a volume's mount table entry pointed at its current UUID",
	Long: `Resolves the named volume (or the one named in the volume config file) to its
current identifier and rewrites the UUID of the single mount table entry carrying
the hint "# vol:<volume-name>". Every other line is left byte-for-byte unchanged.

Run it at boot or on a schedule; each invocation performs exactly one pass.`,
	Args:              usageArgs(cobra.MaximumNArgs(1)),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
	RunE:              runPass,
}

// Execute runs the command line and reports any error on stderr. The
// returned error carries the failure class for the exit code.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.Flags().BoolVar(&passDryRun, "dry-run", false, "Show the change without writing the mount table")
	rootCmd.Flags().BoolVar(&passAdopt, "adopt", false, "Claim an un-hinted entry whose UUID already matches the volume")

	rootCmd.PersistentFlags().String("volume-config", config.DefaultVolumeConfig, "File naming the volume to track")
	rootCmd.PersistentFlags().String("fstab-path", config.DefaultFstabPath, "Mount table to reconcile")
	rootCmd.PersistentFlags().String("lock-file", config.DefaultLockFile, "Advisory lock file (empty: <fstab-path>.lock)")
	rootCmd.PersistentFlags().Duration("lock-timeout", lock.DefaultTimeout, "How long to wait for a concurrent pass")
	rootCmd.PersistentFlags().String("journal-path", config.DefaultJournalPath, "SQLite run journal (empty disables)")
	rootCmd.PersistentFlags().String("backup-s3-bucket", "", "S3 bucket for off-host table backups (empty disables)")
	rootCmd.PersistentFlags().String("backup-s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("backup-s3-prefix", "fstab-backups", "S3 key prefix for table backups")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "node_exporter textfile to write metrics to (empty disables)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log JSON lines instead of console output")

	for _, key := range []string{
		"volume-config", "fstab-path", "lock-file", "lock-timeout", "journal-path",
		"backup-s3-bucket", "backup-s3-region", "backup-s3-prefix",
		"metrics-textfile", "log-level", "log-json",
	} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errors.ErrUsage, err)
	})
}

// usageArgs classifies argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrUsage, err)
		}
		return nil
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	log.Init(log.Config{
		Level:      log.ParseLevel(viper.GetString("log-level")),
		JSONOutput: viper.GetBool("log-json"),
		Output:     cmd.ErrOrStderr(),
	})
	return nil
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUsage, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %v", errors.ErrUsage, err)
	}
	return cfg, nil
}

func runPass(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, err := volumeName(cfg, args)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		return fmt.Errorf("%w: no volume name given and none configured in %s", errors.ErrUsage, cfg.VolumeConfig)
	}

	machine, cleanup := newMachine(ctx, cfg)
	defer cleanup()

	resp, err := machine.Run(ctx, pipeline.Request{
		Volume:    name,
		TablePath: cfg.FstabPath,
		DryRun:    passDryRun,
		Adopt:     passAdopt,
	})
	if err != nil {
		return err
	}

	printResult(cmd, cfg.FstabPath, resp)
	return nil
}

// volumeName prefers the command line over the volume config file.
func volumeName(cfg *config.Config, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	name, err := config.ReadVolumeName(cfg.VolumeConfig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUsage, err)
	}
	return name, nil
}

func printResult(cmd *cobra.Command, tablePath string, resp *pipeline.Response) {
	out := cmd.OutOrStdout()
	c := resp.Change

	if resp.DryRun {
		if !c.Changed() {
			fmt.Fprintf(out, "🔍 %s: %s is up to date (UUID=%s), nothing to do\n", c.Volume, tablePath, c.NewIdentifier)
			return
		}
		fmt.Fprintf(out, "🔍 dry run, %s would be %s at line %d:\n", tablePath, c.Action, c.Line)
		if resp.OldLine != "" {
			fmt.Fprintf(out, "- %s\n", resp.OldLine)
		}
		fmt.Fprintf(out, "+ %s\n", resp.NewLine)
		return
	}

	switch c.Action {
	case reconcile.ActionUnchanged:
		fmt.Fprintf(out, "✅ %s: %s already up to date (UUID=%s)\n", c.Volume, tablePath, c.NewIdentifier)
	case reconcile.ActionUpdated:
		fmt.Fprintf(out, "✅ %s: %s line %d updated UUID=%s -> UUID=%s\n", c.Volume, tablePath, c.Line, c.OldIdentifier, c.NewIdentifier)
	default:
		fmt.Fprintf(out, "✅ %s: %s line %d %s (UUID=%s)\n", c.Volume, tablePath, c.Line, c.Action, c.NewIdentifier)
	}
	if resp.BackupKey != "" {
		fmt.Fprintf(out, "📦 previous table backed up to %s\n", resp.BackupKey)
	}
}
