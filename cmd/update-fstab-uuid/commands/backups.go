package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/storage"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List this host's mount table backups in S3",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runBackups,
}

func init() {
	rootCmd.AddCommand(backupsCmd)
}

func runBackups(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.BackupS3Bucket == "" {
		return fmt.Errorf("%w: backups are disabled (backup-s3-bucket is empty)", errors.ErrUsage)
	}

	client, err := storage.NewClient(ctx, cfg.BackupS3Bucket, cfg.BackupS3Region)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	host, _ := os.Hostname()
	prefix := storage.HostPrefix(cfg.BackupS3Prefix, host)

	keys, err := client.ListObjects(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintf(out, "No backups under s3://%s/%s\n", cfg.BackupS3Bucket, prefix)
		return nil
	}
	for _, key := range keys {
		fmt.Fprintf(out, "s3://%s/%s\n", cfg.BackupS3Bucket, key)
	}
	return nil
}
