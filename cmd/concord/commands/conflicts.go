package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/printer"
)

var (
	conflictsWatch bool
	conflictsJSON  bool
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show the session's detected conflicts",
	Long: `Conflicts prints the result of the most recent detection pass stored in the
session. With --watch it subscribes to the session's conflict event channel
and prints each new batch as detection passes publish them, until
interrupted.`,
	RunE: runConflicts,
}

func init() {
	conflictsCmd.Flags().BoolVar(&conflictsWatch, "watch", false, "Subscribe and print new conflict batches as they are published")
	conflictsCmd.Flags().BoolVar(&conflictsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	conflicts, err := client.GetConflicts(ctx)
	if err != nil {
		return err
	}

	if conflictsJSON && !conflictsWatch {
		return printJSON(conflicts)
	}

	if len(conflicts) == 0 {
		printer.Success("no conflicts in session '%s'\n", cfg.Session)
	} else {
		for _, c := range conflicts {
			printer.Conflict(c)
		}
	}

	if !conflictsWatch {
		return nil
	}

	watchCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sub, err := client.SubscribeConflictEvents(watchCtx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("watching session '%s' for conflict events (Ctrl-C to stop)\n", cfg.Session)
	for {
		select {
		case <-watchCtx.Done():
			return nil
		case batch, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Info("--- detection pass: %d conflict(s) ---\n", len(batch))
			for _, c := range batch {
				printer.Conflict(c)
			}
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("event error: %v\n", err)
		}
	}
}
