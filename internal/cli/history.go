package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelldon-ai/shelldon/pkg/history"
)

var (
	historyLimit  int
	historyFilter string
	historyPrune  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past shell commands and their outcomes",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	historyCmd.Flags().StringVar(&historyFilter, "filter", "", "only show commands containing this substring")
	historyCmd.Flags().BoolVar(&historyPrune, "prune", false, "prune entries older than the retention window first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.history == nil {
		return fmt.Errorf("history is disabled in the configuration")
	}

	if historyPrune {
		retention := time.Duration(a.cfg.History.RetentionDays) * 24 * time.Hour
		removed, err := a.history.Prune(retention)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d entries\n", removed)
	}

	entries, err := a.history.Recent(historyLimit, historyFilter)
	if err != nil {
		return err
	}

	fmt.Print(formatEntries(entries))
	return nil
}

// formatEntries renders history entries as an aligned table, newest first.
func formatEntries(entries []history.Entry) string {
	if len(entries) == 0 {
		return "no history entries\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s  %-10s  %4s  %8s  %s\n", "WHEN", "OUTCOME", "EXIT", "TOOK", "COMMAND")
	for _, e := range entries {
		command := e.Command
		if len(command) > 60 {
			command = command[:57] + "..."
		}
		fmt.Fprintf(&b, "%-20s  %-10s  %4d  %7dms  %s\n",
			e.RanAt.Format("2006-01-02 15:04:05"),
			e.Outcome,
			e.ExitCode,
			e.Duration,
			command,
		)
	}
	return b.String()
}
