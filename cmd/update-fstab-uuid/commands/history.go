package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
	"github.com/mgreiner/update-fstab-uuid/pkg/journal"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history [volume-name]",
	Short: "List recent reconciliation passes from the journal",
	Args:  usageArgs(cobra.MaximumNArgs(1)),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of passes to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show one pass by run ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return fmt.Errorf("%w: the run journal is disabled (journal-path is empty)", errors.ErrUsage)
	}

	repo, err := openJournal(cfg)
	if err != nil {
		return errors.Wrap(err, "journal init failed")
	}
	defer repo.Close()

	if historyRunID != "" {
		return showRun(cmd, repo, historyRunID)
	}

	volume := ""
	if len(args) == 1 {
		volume = args[0]
	}

	runs, err := repo.List(context.Background(), volume, historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No passes recorded")
		return nil
	}

	fmt.Fprintf(out, "%-36s %-20s %-20s %-10s %-8s %-40s %s\n", "RUN", "TIME", "VOLUME", "ACTION", "OUTCOME", "UUID", "ERROR")
	fmt.Fprintln(out, "-----------------------------------------------------------------------------------------------------------------------------------------------")

	for _, r := range runs {
		identifier := r.NewIdentifier
		if r.OldIdentifier != "" && r.OldIdentifier != r.NewIdentifier {
			identifier = r.OldIdentifier + " -> " + r.NewIdentifier
		}
		if identifier == "" {
			identifier = "-"
		}
		errMsg := r.ErrorMessage
		if errMsg == "" {
			errMsg = "-"
		}

		fmt.Fprintf(out, "%-36s %-20s %-20s %-10s %-8s %-40s %s\n",
			r.RunID, r.CreatedAt, r.Volume, r.Action, r.Outcome, identifier, errMsg)
	}

	return nil
}

func showRun(cmd *cobra.Command, repo *journal.Repository, runID string) error {
	run, err := repo.GetByRunID(context.Background(), runID)
	if err != nil {
		return errors.Wrap(err, "lookup failed")
	}
	if run == nil {
		return fmt.Errorf("%w: no pass recorded with run id %s", errors.ErrUsage, runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", run.RunID)
	fmt.Fprintf(out, "Time:       %s\n", run.CreatedAt)
	fmt.Fprintf(out, "Volume:     %s\n", run.Volume)
	fmt.Fprintf(out, "Table:      %s\n", run.TablePath)
	fmt.Fprintf(out, "Action:     %s\n", run.Action)
	fmt.Fprintf(out, "Outcome:    %s\n", run.Outcome)
	fmt.Fprintf(out, "Old UUID:   %s\n", run.OldIdentifier)
	fmt.Fprintf(out, "New UUID:   %s\n", run.NewIdentifier)
	fmt.Fprintf(out, "Exit code:  %d\n", run.ExitCode)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", run.ErrorMessage)
	}
	return nil
}
