// internal/commands/jobs.go
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/util"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent deliberation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := newRuntime(getConfig())
		if err != nil {
			return err
		}
		defer cleanup()

		listed, err := rt.ctrl.List(jobsLimit)
		if err != nil {
			return err
		}
		if len(listed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tQUESTION")
		for _, job := range listed {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				job.ID,
				statusText(job.Status),
				job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				util.Preview(job.Question, 60),
			)
		}
		return w.Flush()
	},
}

func statusText(status string) string {
	switch status {
	case jobs.StatusCompleted:
		return color.GreenString(status)
	case jobs.StatusFailed:
		return color.RedString(status)
	case jobs.StatusCancelled:
		return color.YellowString(status)
	case jobs.StatusRunning:
		return color.CyanString(status)
	}
	return status
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum number of jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
