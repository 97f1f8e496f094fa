package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelldon-ai/shelldon/pkg/runlog"
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Let the AI agent work on a task using the shell",
	Long: `Hand a natural-language task to the configured LLM, which drives the
persistent bash session until it has an answer. Every run is recorded as a
JSON-lines transcript under the configured run directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	transcript, err := runlog.New(a.cfg.Logging.RunDir)
	if err != nil {
		log.Warn().Err(err).Msg("Run transcript unavailable")
		transcript = nil
	} else {
		defer transcript.Close()
	}

	runner, err := a.newRunner(transcript)
	if err != nil {
		return err
	}

	task := strings.Join(args, " ")
	if transcript != nil {
		log.Info().Str("run_id", transcript.RunID()).Str("transcript", transcript.Path()).Msg("Starting agent run")
	}

	answer, err := runner.Run(cmd.Context(), task)
	if err != nil {
		return fmt.Errorf("agent run failed: %w", err)
	}

	fmt.Println(answer)
	return nil
}
