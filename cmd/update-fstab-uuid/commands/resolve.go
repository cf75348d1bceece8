package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgreiner/update-fstab-uuid/pkg/security"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <volume-name>",
	Short: "Print the current identifier of a volume",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := security.NewValidator(0).ValidateVolumeName(name); err != nil {
		return err
	}

	record, err := newResolver().Resolve(context.Background(), name)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\tUUID=%s\t%s\n", record.Name, record.Identifier, record.Device)
	return nil
}
