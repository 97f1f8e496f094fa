package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

var execTimeout int

var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "Run a shell command directly, without the LLM",
	Long: `Run one command in a persistent bash session and print the result.
The command goes through the same security gate, timeout handling, and crash
recovery as agent-driven commands.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().IntVar(&execTimeout, "timeout", 0, "command timeout in seconds (default from config)")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	command := strings.Join(args, " ")
	timeout := time.Duration(a.cfg.Shell.TimeoutSeconds) * time.Second
	if execTimeout > 0 {
		timeout = time.Duration(execTimeout) * time.Second
	}

	res := a.shell.ExecuteTimeout(cmd.Context(), command, timeout)
	fmt.Println(res.Render())

	if res.Outcome == shell.OutcomeStartFailed {
		return res.Err
	}
	return nil
}
