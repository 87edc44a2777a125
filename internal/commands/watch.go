// internal/commands/watch.go
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zeetio/llm-council/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [job-id]",
	Short: "Follow a job's event stream in a live terminal view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := newRuntime(getConfig())
		if err != nil {
			return err
		}
		defer cleanup()

		jobID := args[0]
		events, unsubscribe, err := rt.ctrl.Subscribe(jobID)
		if err != nil {
			return fmt.Errorf("job %s: %w", jobID, err)
		}
		defer unsubscribe()

		return tui.Watch(jobID, events, func() error {
			return rt.ctrl.Cancel(jobID)
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
