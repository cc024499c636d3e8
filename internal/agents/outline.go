package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/story"
)

// OutlineBuilder produces and revises structured story outlines.
type OutlineBuilder struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewOutlineBuilder(gen llm.Generator) *OutlineBuilder {
	return &OutlineBuilder{
		gen:    gen,
		logger: slog.Default().With("component", "outline_builder"),
	}
}

const outlineSystemPrompt = `You are an expert story planner. Create a detailed, well-structured outline
based on the story prompt, analysis, and user's answers to clarifying questions.

For novels: Create 15-25 chapters with 2000-4000 words each
For screenplays: Create acts and scenes with appropriate pacing
For short stories: Create 3-7 sections with 500-1500 words each

Ensure proper story structure, character development, and pacing.`

// CreateOutline combines prompt, analysis and answers into one structured
// call. The returned chapter list defines the immutable chapter ordering for
// the rest of the project.
func (o *OutlineBuilder) CreateOutline(ctx context.Context, prompt story.Prompt, analysis story.Analysis, answers map[string]string) (story.Outline, error) {
	o.logger.Info("creating outline",
		"story_type", prompt.StoryType,
		"answers", len(answers),
		"complexity_score", analysis.ComplexityScore)

	outlinePrompt := fmt.Sprintf(`
Create a detailed outline for this story:

Original Prompt: %s
Story Type: %s
Target Length: %s
Genre: %s

Analysis Insights:
- Complexity Score: %d/10
- Key Strengths: %s
- Genre Analysis: %s

User Answers to Questions:
%s

Create a comprehensive outline with:
1. Clear title and premise
2. Main theme
3. Well-developed main characters with arcs
4. Detailed setting
5. Chapter-by-chapter breakdown with titles, summaries, key events, and characters
6. Appropriate word count targets
`,
		prompt.Content,
		prompt.StoryType,
		orDefaultInt(prompt.TargetLength, "Standard length"),
		orDefault(prompt.Genre, "To be determined"),
		analysis.ComplexityScore,
		joinList(analysis.Strengths),
		orDefault(analysis.GenreAnalysis, "Not provided"),
		formatAnswers(answers))

	outline, err := llm.Structured[story.Outline](ctx, o.gen, outlinePrompt, outlineSystemPrompt, outlineSchema)
	if err != nil {
		o.logger.Error("outline creation failed", "error", err)
		return story.Outline{}, fmt.Errorf("creating outline: %w", err)
	}

	if err := validate.Struct(outline); err != nil {
		o.logger.Error("outline failed validation", "error", err)
		return story.Outline{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	o.logger.Info("outline created",
		"title", outline.Title,
		"chapters", len(outline.Chapters),
		"characters", len(outline.MainCharacters),
		"total_word_count", outline.TotalWordCount)

	return outline, nil
}

// ReviseOutline regenerates the entire outline from the current one plus
// free-text feedback. This is a full replace, not a patch; callers must not
// assume any chapter is preserved verbatim.
func (o *OutlineBuilder) ReviseOutline(ctx context.Context, current story.Outline, feedback string) (story.Outline, error) {
	o.logger.Info("revising outline",
		"title", current.Title,
		"chapters", len(current.Chapters),
		"feedback_length", len(feedback))

	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return story.Outline{}, fmt.Errorf("serializing outline: %w", err)
	}

	revisionPrompt := fmt.Sprintf(`
Revise this outline based on the feedback:

Current Outline: %s

User Feedback: %s

Provide the complete revised outline maintaining structural integrity.
`, currentJSON, feedback)

	system := `Revise the story outline based on user feedback.
Maintain the overall structure while incorporating the requested changes.
Ensure consistency across all chapters and character arcs.`

	revised, err := llm.Structured[story.Outline](ctx, o.gen, revisionPrompt, system, outlineSchema)
	if err != nil {
		o.logger.Error("outline revision failed", "error", err)
		return story.Outline{}, fmt.Errorf("revising outline: %w", err)
	}

	if err := validate.Struct(revised); err != nil {
		return story.Outline{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	o.logger.Info("outline revised",
		"title", revised.Title,
		"chapters_before", len(current.Chapters),
		"chapters_after", len(revised.Chapters))

	return revised, nil
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "None noted"
	}
	return strings.Join(items, ", ")
}
