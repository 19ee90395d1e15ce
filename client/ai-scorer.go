package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ftc/repository"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// CriterionScore is one advisory per-criterion score from the model.
type CriterionScore struct {
	CriteriaId int     `json:"criteria_id"`
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
}

// ScoreSet is the full advisory result of one auto-scoring call. It is
// returned to the reviewer and never persisted by the caller; the
// reviewer commits any of it through the normal scoring operations.
type ScoreSet struct {
	Scores         []CriterionScore `json:"scores"`
	Comments       string           `json:"comments"`
	Recommendation string           `json:"recommendation"`
	Confidence     int              `json:"confidence"`
}

// ScoringProvider is the external AI scoring collaborator. It is
// injected where needed so the evaluation engine is testable with a
// fake implementation and swappable across model providers.
type ScoringProvider interface {
	ScoreApplication(ctx context.Context, application *repository.Application, criteria []*repository.EvaluationCriteria, stage repository.ReviewStage) (*ScoreSet, error)
}

// AnthropicScorer scores applications with the Anthropic API.
type AnthropicScorer struct {
	api   *anthropic.Client
	model anthropic.Model
}

func NewAnthropicScorer(apiKey, model string) *AnthropicScorer {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	api := anthropic.NewClient(opts...)
	return &AnthropicScorer{
		api:   &api,
		model: anthropic.Model(model),
	}
}

func buildPrompt(application *repository.Application, criteria []*repository.EvaluationCriteria, stage repository.ReviewStage) (system string, user string) {
	system = `You evaluate event applications against a weighted rubric. Return ONLY a JSON object with these fields:
- "scores": array of {"criteria_id": <int>, "score": <number 0-10>, "reasoning": <string>} with exactly one entry per rubric criterion
- "comments": overall assessment of the application (2-5 sentences)
- "recommendation": one of "ACCEPT", "REJECT", "WAITLIST", "NEEDS_MORE_INFO"
- "confidence": integer 1-5, how confident you are in this assessment

Rules:
- Score strictly within [0, 10]; reserve scores above 8 for exceptional answers
- Reasoning must cite the applicant's own answers, not generic praise
- Missing or evasive answers lower the score for the affected criteria
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Review stage: %s\n\n", stage))
	sb.WriteString("Rubric criteria:\n")
	for _, criterion := range criteria {
		sb.WriteString(fmt.Sprintf("- id=%d %s (weight %.2f)", criterion.Id, criterion.Name, criterion.Weight))
		if criterion.Description != nil {
			sb.WriteString(": ")
			sb.WriteString(*criterion.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nApplication answers, in question order:\n")
	for _, response := range application.Responses {
		if response.Question != nil {
			sb.WriteString(fmt.Sprintf("\nQ: %s\n", response.Question.Prompt))
		}
		sb.WriteString(fmt.Sprintf("A: %s\n", response.Answer))
	}
	user = sb.String()
	return
}

// ScoreApplication sends the application and rubric to the model and
// returns its advisory score set. Errors propagate to the caller; no
// state is persisted here.
func (c *AnthropicScorer) ScoreApplication(ctx context.Context, application *repository.Application, criteria []*repository.EvaluationCriteria, stage repository.ReviewStage) (*ScoreSet, error) {
	systemPrompt, userPrompt := buildPrompt(application, criteria, stage)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseScoreSet(text)
}

// parseScoreSet strips markdown fencing if present and unmarshals the
// model's JSON contract.
func parseScoreSet(text string) (*ScoreSet, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var scoreSet ScoreSet
	if err := json.Unmarshal([]byte(text), &scoreSet); err != nil {
		return nil, fmt.Errorf("parse scoring response as JSON: %w\nraw response: %s", err, text)
	}
	return &scoreSet, nil
}
