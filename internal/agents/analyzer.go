package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/story"
)

var validate = validator.New()

// Analyzer turns a raw story prompt into gaps, questions and strengths.
type Analyzer struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewAnalyzer(gen llm.Generator) *Analyzer {
	return &Analyzer{
		gen:    gen,
		logger: slog.Default().With("component", "analyzer"),
	}
}

const analyzerSystemPrompt = `You are an expert story analyst. Analyze the given story prompt and identify:
1. Gaps or missing elements that need clarification
2. Questions that would help develop the story
3. Strengths of the current concept
4. Genre analysis and complexity assessment

Be thorough but constructive in your analysis.`

// Analyze issues one structured call covering gaps, questions, strengths,
// genre analysis and complexity together, so the pieces cannot contradict
// each other. Generation or parse failures propagate; nothing is defaulted.
func (a *Analyzer) Analyze(ctx context.Context, prompt story.Prompt) (story.Analysis, error) {
	a.logger.Info("analyzing story prompt",
		"story_type", prompt.StoryType,
		"content_length", len(prompt.Content),
		"genre", prompt.Genre)

	analysisPrompt := fmt.Sprintf(`
Analyze this story prompt:

Story Type: %s
Content: %s
Genre: %s
Target Length: %s
Style Preferences: %s

Identify gaps, generate clarifying questions, note strengths, and assess complexity.
`,
		prompt.StoryType,
		prompt.Content,
		orDefault(prompt.Genre, "Not specified"),
		orDefaultInt(prompt.TargetLength, "Not specified"),
		orDefault(prompt.StylePreferences, "Not specified"))

	analysis, err := llm.Structured[story.Analysis](ctx, a.gen, analysisPrompt, analyzerSystemPrompt, analysisSchema)
	if err != nil {
		a.logger.Error("story analysis failed", "error", err)
		return story.Analysis{}, fmt.Errorf("analyzing story: %w", err)
	}

	if err := validate.Struct(analysis); err != nil {
		a.logger.Error("analysis failed validation", "error", err)
		return story.Analysis{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	a.logger.Info("story analysis complete",
		"gaps", len(analysis.Gaps),
		"questions", len(analysis.Questions),
		"strengths", len(analysis.Strengths),
		"complexity_score", analysis.ComplexityScore)

	return analysis, nil
}

// FollowUpQuestions generates 3-5 additional questions conditioned on the
// prior answers. The original analysis is not mutated.
func (a *Analyzer) FollowUpQuestions(ctx context.Context, analysis story.Analysis, answers map[string]string) ([]story.Question, error) {
	a.logger.Info("generating follow-up questions", "prior_answers", len(answers))

	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing analysis: %w", err)
	}

	prompt := fmt.Sprintf(`
Based on this analysis and user answers, generate follow-up questions:

Original Analysis: %s
User Answers: %s

Generate 3-5 targeted follow-up questions.
`, analysisJSON, formatAnswers(answers))

	system := `Generate additional clarifying questions based on the user's previous answers.
Focus on areas that still need development or where answers revealed new gaps.`

	result, err := llm.Structured[struct {
		Questions []story.Question `json:"questions"`
	}](ctx, a.gen, prompt, system, followUpSchema)
	if err != nil {
		a.logger.Error("follow-up question generation failed", "error", err)
		return nil, fmt.Errorf("generating follow-up questions: %w", err)
	}

	for _, q := range result.Questions {
		if err := validate.Struct(q); err != nil {
			return nil, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
		}
	}

	a.logger.Info("follow-up questions generated", "count", len(result.Questions))
	return result.Questions, nil
}

func formatAnswers(answers map[string]string) string {
	var parts []string
	for _, q := range sortedAnswerKeys(answers) {
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s", q, answers[q]))
	}
	return strings.Join(parts, "\n\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n int, def string) string {
	if n == 0 {
		return def
	}
	return fmt.Sprintf("%d", n)
}
