// internal/commands/ask.go
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/storage"
)

var (
	askProject      string
	askConversation string
)

var stageHeader = color.New(color.FgCyan, color.Bold).SprintFunc()
var memberName = color.New(color.FgMagenta).SprintFunc()
var successText = color.New(color.FgGreen).SprintFunc()
var failureText = color.New(color.FgRed).SprintFunc()

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the council a question and wait for the verdict",
	Long:  `Runs a full deliberation from the terminal: every stage is printed as it completes, ending with the chairman's answer and a usage summary.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		rt, cleanup, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		question := strings.Join(args, " ")

		conversationID := askConversation
		firstMessage := false
		if conversationID == "" {
			conv, err := rt.files.CreateConversation(askProject)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("project %q not found", askProject)
				}
				return err
			}
			conversationID = conv.ID
			firstMessage = true
		}

		job, err := rt.ctrl.Submit(jobs.SubmitRequest{
			ProjectID:      askProject,
			ConversationID: conversationID,
			Question:       question,
			GenerateTitle:  firstMessage && !cfg.DisableTitleGen,
		})
		if err != nil {
			return err
		}

		events, unsubscribe, err := rt.ctrl.Subscribe(job.ID)
		if err != nil {
			return err
		}
		defer unsubscribe()

		for event := range events {
			printEvent(cmd, event)
		}

		final, err := rt.ctrl.Snapshot(job.ID)
		if err != nil {
			return err
		}
		if final.Status != jobs.StatusCompleted {
			return fmt.Errorf("deliberation %s: %s", final.Status, final.Error)
		}
		return nil
	},
}

func printEvent(cmd *cobra.Command, event jobs.Event) {
	out := cmd.OutOrStdout()
	switch event.Type {
	case jobs.EventStage1Start:
		fmt.Fprintln(out, stageHeader("Stage 1"), "collecting independent answers...")
	case jobs.EventStage1Complete:
		var results []council.Stage1Result
		if json.Unmarshal(event.Data, &results) == nil {
			for _, res := range results {
				fmt.Fprintf(out, "  %s answered (%d chars)\n", memberName(res.Model), len(res.Response))
			}
		}
	case jobs.EventStage2Start:
		fmt.Fprintln(out, stageHeader("Stage 2"), "anonymous peer ranking...")
	case jobs.EventStage2Complete:
		var meta struct {
			Aggregate []council.AggregateEntry `json:"aggregate_rankings"`
		}
		if json.Unmarshal(event.Metadata, &meta) == nil {
			for i, entry := range meta.Aggregate {
				fmt.Fprintf(out, "  %d. %s (avg rank %.2f, %d votes)\n", i+1, memberName(entry.Model), entry.AverageRank, entry.VoteCount)
			}
		}
	case jobs.EventStage3Start:
		fmt.Fprintln(out, stageHeader("Stage 3"), "chairman synthesis...")
	case jobs.EventStage3Complete:
		var result council.Stage3Result
		if json.Unmarshal(event.Data, &result) == nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Response)
			fmt.Fprintln(out)
		}
	case jobs.EventTitleComplete:
		fmt.Fprintf(out, "  conversation titled %q\n", event.Title)
	case jobs.EventComplete:
		if event.Usage != nil {
			fmt.Fprintln(out, successText(fmt.Sprintf("Done: %d calls, %d tokens, $%.4f estimated",
				event.Usage.TotalCalls, event.Usage.TotalTokens, event.Usage.TotalCostUSD)))
		} else {
			fmt.Fprintln(out, successText("Done"))
		}
	case jobs.EventError:
		fmt.Fprintln(out, failureText("Failed: "+event.Message))
	case jobs.EventCancelled:
		fmt.Fprintln(out, failureText("Cancelled"))
	}
}

func init() {
	askCmd.Flags().StringVar(&askProject, "project", storage.DefaultProjectID, "project to file the conversation under")
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "continue an existing conversation by ID")
	rootCmd.AddCommand(askCmd)
}
