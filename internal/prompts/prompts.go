// Package prompts holds the fixed stage prompts and the user prompt templates
// rendered for each pipeline stage.
package prompts

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// Prompt names.
const (
	Planner     = "planner"
	Ranker      = "ranker"
	Synthesizer = "synthesizer"
	Reviewer    = "reviewer"
	Supervisor  = "supervisor"
)

var defaults = map[string]string{
	Planner: "You generate search keywords for the technology catalog. " +
		"Given a user request, respond with JSON containing a single key 'query'. " +
		"Return **only** the JSON object.",
	Synthesizer: "You are an assistant that turns ranked applications into a helpful " +
		"answer. Using the provided list and user question, generate a short " +
		"Markdown response describing the most relevant applications as a " +
		"bullet list.",
	Ranker: "Rank the following applications in relevance to the user query. " +
		"Return a JSON list of application IDs ordered most to least relevant.",
	Reviewer: "Review the worker's answer for clarity and correctness. " +
		"Return the improved final answer in Markdown.",
	Supervisor: "Coordinate the workers to fulfill the user request. " +
		"Use planning prompts and ensure the workflow is followed.",
}

// Get returns the built-in prompt for name, or "" when name is unknown.
func Get(name string) string {
	return defaults[name]
}

// Library resolves prompts with optional overrides.
type Library struct {
	overrides map[string]string
}

// NewLibrary returns a library where non-empty overrides replace built-ins.
func NewLibrary(overrides map[string]string) *Library {
	o := make(map[string]string, len(overrides))
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			o[k] = v
		}
	}
	return &Library{overrides: o}
}

// Get returns the override for name if set, else the built-in prompt.
func (l *Library) Get(name string) string {
	if l != nil {
		if v, ok := l.overrides[name]; ok {
			return v
		}
	}
	return Get(name)
}

var (
	plannerTemplate = prompts.NewPromptTemplate(
		"User query: {query}",
		[]string{"query"},
	)
	rankerTemplate = prompts.NewPromptTemplate(
		"Rank the following applications in relevance to the user query.\n"+
			"User query: {query}\nApplications:{apps}\n"+
			"Return a JSON list of application IDs ordered most to least relevant.",
		[]string{"query", "apps"},
	)
	synthesizerTemplate = prompts.NewPromptTemplate(
		"User question: {query}\nRanked applications:{apps}",
		[]string{"query", "apps"},
	)
	reviewerTemplate = prompts.NewPromptTemplate(
		"User question: {query}\nWorker answer:\n{draft}",
		[]string{"query", "draft"},
	)
)

// Listing is one application line in a ranker or synthesizer prompt.
type Listing struct {
	ID          string
	Name        string
	Description string
}

// PlannerInput renders the planner user prompt.
func PlannerInput(query string) (string, error) {
	return format(plannerTemplate, map[string]any{"query": query})
}

// RankerInput renders the ranker user prompt with one "- id: description"
// line per candidate.
func RankerInput(query string, candidates []Listing) (string, error) {
	var b strings.Builder
	for _, c := range candidates {
		b.WriteString("\n- ")
		b.WriteString(c.ID)
		b.WriteString(": ")
		b.WriteString(c.Description)
	}
	return format(rankerTemplate, map[string]any{"query": query, "apps": b.String()})
}

// SynthesizerInput renders the synthesizer user prompt in ranked order.
func SynthesizerInput(query string, ranked []Listing) (string, error) {
	var b strings.Builder
	for i, r := range ranked {
		fmt.Fprintf(&b, "\n%d. %s (%s): %s", i+1, r.Name, r.ID, r.Description)
	}
	return format(synthesizerTemplate, map[string]any{"query": query, "apps": b.String()})
}

// ReviewerInput renders the reviewer user prompt.
func ReviewerInput(query, draft string) (string, error) {
	return format(reviewerTemplate, map[string]any{"query": query, "draft": draft})
}

func format(t prompts.PromptTemplate, values map[string]any) (string, error) {
	out, err := t.Format(values)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return out, nil
}
