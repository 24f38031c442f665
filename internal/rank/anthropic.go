package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const scoringSystemPrompt = `You rank sales prospects. For each candidate, return how likely they are to ` +
	`own the buying decision for the role being hired. Reply with only a JSON array of numbers ` +
	`between 0 and 1, one per candidate, in the order given.`

// AnthropicScorer asks a Claude model for candidate scores.
type AnthropicScorer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicScorer(apiKey, model string, maxTokens int, opts ...option.RequestOption) *AnthropicScorer {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicScorer{
		client:    anthropic.NewClient(all...),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (s *AnthropicScorer) Score(ctx context.Context, req ScoreRequest) ([]float64, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: scoringSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildScoringPrompt(req))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic score: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseScores(text.String(), len(req.Candidates))
}

func buildScoringPrompt(req ScoreRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s (%s)\n", req.CompanyName, req.CompanyDomain)
	if req.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", req.Industry)
	}
	if req.EmployeeCount > 0 {
		fmt.Fprintf(&b, "Employees: %d\n", req.EmployeeCount)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", truncate(req.Description, 600))
	}
	fmt.Fprintf(&b, "Hiring for: %s", req.JobTitle)
	if req.JobLocation != "" {
		fmt.Fprintf(&b, " in %s", req.JobLocation)
	}
	b.WriteString("\n\nCandidates:\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&b, "%d. %s, %s", i+1, c.Name, c.Title)
		if c.Department != "" {
			fmt.Fprintf(&b, " [%s]", c.Department)
		}
		if c.Location != "" {
			fmt.Fprintf(&b, " (%s)", c.Location)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// parseScores extracts the JSON array from a model reply. The reply may be
// wrapped in a markdown fence or surrounded by prose.
func parseScores(content string, want int) ([]float64, error) {
	content = cleanMarkdownJSON(content)
	if i, j := strings.Index(content, "["), strings.LastIndex(content, "]"); i >= 0 && j > i {
		content = content[i : j+1]
	}

	var scores []float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}
	if len(scores) != want {
		return nil, fmt.Errorf("parse scores: got %d scores for %d candidates", len(scores), want)
	}
	for i := range scores {
		scores[i] = clamp01(scores[i])
	}
	return scores, nil
}

func cleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
