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

// Excerpt budgets for critique grounding. Full-story critique reads a hard
// byte-capped prefix; very long manuscripts are critiqued on that prefix
// only, which is a documented limitation.
const (
	critiqueTailBytes    = 1000
	critiqueSummaryBytes = 1000
	continuityTailBytes  = 3000
	fullStoryBytes       = 5000
	improvementBytes     = 2000
)

// Critic produces structured critique of chapters and whole works.
type Critic struct {
	gen    llm.Generator
	store  *story.Store
	logger *slog.Logger
}

func NewCritic(gen llm.Generator, store *story.Store) *Critic {
	return &Critic{
		gen:    gen,
		store:  store,
		logger: slog.Default().With("component", "critic"),
	}
}

const criticSystemPrompt = `You are a professional story editor and critic. Provide constructive,
detailed feedback on story chapters focusing on:

1. Character development and consistency
2. Plot advancement and coherence
3. Writing quality and style
4. Pacing and structure
5. Continuity with previous chapters
6. Genre conventions and reader expectations

Be specific, actionable, and balanced in your critique.`

// CritiqueChapter critiques one chapter against its outline expectations,
// a truncated prior-chapter tail and the character summary.
func (c *Critic) CritiqueChapter(ctx context.Context, content string, chapterIndex int, sctx *story.Context) (story.Critique, error) {
	if chapterIndex < 0 || chapterIndex >= len(sctx.Outline.Chapters) {
		return story.Critique{}, fmt.Errorf("chapter index %d out of range (0-%d)", chapterIndex, len(sctx.Outline.Chapters)-1)
	}

	chapter := sctx.Outline.Chapters[chapterIndex]

	c.logger.Info("critiquing chapter",
		"chapter_index", chapterIndex,
		"title", chapter.Title,
		"content_length", len(content))

	priorContent := "This is the first chapter"
	if chapterIndex > 0 {
		recent, err := c.store.RecentContent(2)
		if err != nil {
			return story.Critique{}, fmt.Errorf("loading recent content: %w", err)
		}
		priorContent = truncate(recent, critiqueTailBytes)
	}

	charSummary, err := c.store.CharacterSummary()
	if err != nil {
		return story.Critique{}, fmt.Errorf("loading character summary: %w", err)
	}

	prompt := fmt.Sprintf(`
Critique this chapter:

Chapter %d: %s
Expected Summary: %s
Expected Key Events: %s

Chapter Content:
%s

Story Context:
- Genre: %s
- Theme: %s
- Setting: %s

Previous chapters summary:
%s

Character arcs so far:
%s

Provide detailed critique focusing on strengths, weaknesses, and specific suggestions.
`,
		chapterIndex+1,
		chapter.Title,
		chapter.Summary,
		strings.Join(chapter.KeyEvents, ", "),
		content,
		sctx.Outline.Genre,
		sctx.Outline.Theme,
		sctx.Outline.Setting,
		priorContent,
		truncate(charSummary, critiqueSummaryBytes))

	critique, err := llm.Structured[story.Critique](ctx, c.gen, prompt, criticSystemPrompt, critiqueSchema)
	if err != nil {
		c.logger.Error("chapter critique failed",
			"chapter_index", chapterIndex,
			"error", err)
		return story.Critique{}, fmt.Errorf("critiquing chapter %d: %w", chapterIndex+1, err)
	}

	if err := validate.Struct(critique); err != nil {
		return story.Critique{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	c.logger.Info("chapter critique complete",
		"chapter_index", chapterIndex,
		"overall_score", critique.OverallScore,
		"continuity_issues", len(critique.ContinuityIssues))

	return critique, nil
}

// CritiqueFullStory critiques the completed manuscript as a whole, reading a
// byte-capped prefix of the concatenated chapters plus the serialized
// outline.
func (c *Critic) CritiqueFullStory(ctx context.Context, sctx *story.Context) (story.Critique, error) {
	c.logger.Info("critiquing full story",
		"title", sctx.Outline.Title,
		"chapters", len(sctx.CompletedChapters))

	fullContent := strings.Join(sctx.CompletedChapters, "\n\n")

	outlineJSON, err := json.MarshalIndent(sctx.Outline, "", "  ")
	if err != nil {
		return story.Critique{}, fmt.Errorf("serializing outline: %w", err)
	}

	prompt := fmt.Sprintf(`
Review this complete story:

Title: %s
Genre: %s
Theme: %s

Full Story Content:
%s...

Story Outline:
%s

Evaluate the complete work for:
1. Overall narrative coherence
2. Character arc completion
3. Thematic consistency
4. Pacing and structure
5. Genre satisfaction
6. Writing quality consistency

Provide comprehensive feedback on the finished work.
`,
		sctx.Outline.Title,
		sctx.Outline.Genre,
		sctx.Outline.Theme,
		truncate(fullContent, fullStoryBytes),
		outlineJSON)

	system := `You are a professional story editor reviewing a complete work.
Evaluate the overall narrative structure, character arcs, thematic coherence, and
writing quality across the entire story.`

	critique, err := llm.Structured[story.Critique](ctx, c.gen, prompt, system, critiqueSchema)
	if err != nil {
		c.logger.Error("full story critique failed", "error", err)
		return story.Critique{}, fmt.Errorf("critiquing full story: %w", err)
	}

	if err := validate.Struct(critique); err != nil {
		return story.Critique{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}

	return critique, nil
}

// CheckContinuity scans the last window chapters for continuity issues.
// Returns empty immediately when no chapters are completed; no generation
// call is made in that case.
func (c *Critic) CheckContinuity(ctx context.Context, sctx *story.Context, window int) ([]string, error) {
	if len(sctx.CompletedChapters) == 0 {
		return []string{}, nil
	}

	recent, err := c.store.RecentContent(window)
	if err != nil {
		return nil, fmt.Errorf("loading recent content: %w", err)
	}
	if recent == "" {
		return []string{}, nil
	}

	charSummary, err := c.store.CharacterSummary()
	if err != nil {
		return nil, fmt.Errorf("loading character summary: %w", err)
	}
	plotSummary, err := c.store.PlotSummary()
	if err != nil {
		return nil, fmt.Errorf("loading plot summary: %w", err)
	}

	c.logger.Info("checking continuity",
		"window", window,
		"completed_chapters", len(sctx.CompletedChapters))

	prompt := fmt.Sprintf(`
Check these recent chapters for continuity issues:

Story Context:
- Characters: %s
- Plot Status: %s

Recent Chapter Content:
%s

Identify any:
1. Character behavior inconsistencies
2. Timeline or chronology errors
3. World-building contradictions
4. Forgotten or contradicted plot points
5. Inconsistent character knowledge or relationships

List specific continuity issues found.
`,
		truncate(charSummary, critiqueSummaryBytes),
		truncate(plotSummary, critiqueSummaryBytes),
		truncate(recent, continuityTailBytes))

	system := `Check for continuity errors, inconsistencies, and plot holes
across the recent chapters. Focus on character behavior, timeline, world-building,
and plot thread consistency.`

	result, err := llm.Structured[struct {
		ContinuityIssues []string `json:"continuity_issues"`
	}](ctx, c.gen, prompt, system, continuitySchema)
	if err != nil {
		return nil, fmt.Errorf("checking continuity: %w", err)
	}

	c.logger.Info("continuity check complete", "issues", len(result.ContinuityIssues))
	return result.ContinuityIssues, nil
}

// SuggestImprovements turns an existing critique into concrete revision
// advice. The critique itself is not re-derived.
func (c *Critic) SuggestImprovements(ctx context.Context, content string, critique story.Critique) (string, error) {
	prompt := fmt.Sprintf(`
Chapter Content:
%s

Critique Results:
- Overall Score: %d/10
- Weaknesses: %s
- Suggestions: %s
- Continuity Issues: %s

Provide specific, actionable suggestions for improving this chapter.
Focus on the 3-5 most important improvements that would have the biggest impact.
`,
		truncate(content, improvementBytes),
		critique.OverallScore,
		strings.Join(critique.Weaknesses, ", "),
		strings.Join(critique.Suggestions, ", "),
		strings.Join(critique.ContinuityIssues, ", "))

	system := `Based on the critique provided, suggest specific textual improvements
to the chapter. Focus on the most important issues identified in the critique.`

	suggestions, err := c.gen.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: 0.6,
	})
	if err != nil {
		return "", fmt.Errorf("suggesting improvements: %w", err)
	}
	return suggestions, nil
}
