// internal/council/prompts.go
package council

import (
	"fmt"
	"strings"

	"github.com/Zeetio/llm-council/internal/openrouter"
)

// Turn is one prior exchange from the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildStage1Messages assembles one member's conversation: prior history,
// optional long-term memory context, then the current question.
func buildStage1Messages(question string, history []Turn, memoryContext string) []openrouter.Message {
	var messages []openrouter.Message
	if memoryContext != "" {
		messages = append(messages, openrouter.Message{
			Role:    "system",
			Content: "Context about the user from previous conversations:\n" + memoryContext,
		})
	}
	for _, turn := range history {
		messages = append(messages, openrouter.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, openrouter.Message{Role: "user", Content: question})
	return messages
}

// buildRankingPrompt shows a rater the anonymized answers and asks for an
// explicit ordering. Only labels appear; never model identifiers or names.
func buildRankingPrompt(question string, m AnonymizationMap) string {
	var b strings.Builder
	b.WriteString("Several assistants were asked the following question:\n\n")
	b.WriteString(question)
	b.WriteString("\n\nHere are their answers, in no particular order:\n\n")
	for _, label := range m.Labels() {
		res, _ := m.ResultFor(label)
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", label, res.Response)
	}
	b.WriteString("Evaluate the answers for accuracy, depth and clarity. ")
	b.WriteString("Then rank all of them from best to worst as a numbered list, ")
	b.WriteString("one label per line, for example:\n1. Response B\n2. Response A\n")
	b.WriteString("Every label must appear exactly once in your ranking.")
	return b.String()
}

// buildChairmanPrompt hands the chairman everything the turn produced, with
// identities restored.
func buildChairmanPrompt(question string, stage1 []Stage1Result, stage2 []Stage2Result, aggregate []AggregateEntry, m AnonymizationMap, memoryContext string) string {
	var b strings.Builder
	b.WriteString("You are the chairman of a council of AI models. ")
	b.WriteString("Council members answered a question independently, then ranked each other's answers anonymously. ")
	b.WriteString("Synthesize the best possible final answer for the user, informed by the answers and the peer rankings.\n\n")

	if memoryContext != "" {
		b.WriteString("Context about the user:\n")
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}

	b.WriteString("User question:\n")
	b.WriteString(question)
	b.WriteString("\n\nCouncil answers:\n\n")
	for _, res := range stage1 {
		fmt.Fprintf(&b, "=== %s (%s) ===\n%s\n\n", res.Name, res.Model, res.Response)
	}

	if len(aggregate) > 0 {
		b.WriteString("Peer ranking (best to worst, by average rank):\n")
		for i, entry := range aggregate {
			fmt.Fprintf(&b, "%d. %s (%s): average rank %.2f across %d votes\n",
				i+1, entry.Name, entry.Model, entry.AverageRank, entry.VoteCount)
		}
		b.WriteString("\n")
	}

	if len(stage2) > 0 {
		b.WriteString("Individual critiques (anonymized labels restored to model names):\n\n")
		for _, ranking := range stage2 {
			fmt.Fprintf(&b, "--- Critique by %s ---\n%s\n\n", ranking.Model, m.Deanonymize(ranking.Ranking))
		}
	}

	b.WriteString("Respond with the final answer only. Do not mention the council process unless the user asked about it.")
	return b.String()
}

// titlePrompt asks for a short conversation title from the first message.
func titlePrompt(question string) string {
	return "Generate a concise title (max 6 words) for a conversation that starts with this message. " +
		"Reply with the title only, no quotes:\n\n" + question
}
