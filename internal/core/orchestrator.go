package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sharatg/novel-dev/internal/agents"
	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/story"
)

// continuityWindow is how many trailing chapters a continuity scan reads.
const continuityWindow = 5

// AvailabilityChecker is implemented by generators that can report runtime
// reachability. Checked once before a project starts, not per call.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

// NovelWriter drives the project lifecycle: analysis, outline, chapter loop,
// critique, export. All durable state flows through the store; the
// orchestrator reloads from disk at each operation rather than holding a
// long-lived context in memory, so every operation resumes cleanly after a
// restart.
type NovelWriter struct {
	projectName string
	store       *story.Store
	gen         llm.Generator
	analyzer    *agents.Analyzer
	outliner    *agents.OutlineBuilder
	engine      *agents.WritingEngine
	critic      *agents.Critic
	logger      *slog.Logger
}

func NewNovelWriter(projectName, projectsDir string, gen llm.Generator) (*NovelWriter, error) {
	store, err := story.NewStore(filepath.Join(projectsDir, projectName))
	if err != nil {
		return nil, fmt.Errorf("opening project store: %w", err)
	}

	return &NovelWriter{
		projectName: projectName,
		store:       store,
		gen:         gen,
		analyzer:    agents.NewAnalyzer(gen),
		outliner:    agents.NewOutlineBuilder(gen),
		engine:      agents.NewWritingEngine(gen, store),
		critic:      agents.NewCritic(gen, store),
		logger:      slog.Default().With("component", "novel_writer", "project", projectName),
	}, nil
}

// Store exposes the project store for thin consumers (status rendering,
// style-note edits).
func (n *NovelWriter) Store() *story.Store {
	return n.store
}

// CheckAvailability reports whether the generator is reachable. Generators
// that cannot report availability are assumed reachable.
func (n *NovelWriter) CheckAvailability(ctx context.Context) bool {
	if checker, ok := n.gen.(AvailabilityChecker); ok {
		return checker.IsAvailable(ctx)
	}
	return true
}

// StartProject analyzes the prompt and persists the transient bootstrap
// state. No durable context exists yet; that is created when the questions
// are answered and the outline approved.
func (n *NovelWriter) StartProject(ctx context.Context, prompt story.Prompt) (story.Analysis, error) {
	if !n.CheckAvailability(ctx) {
		return story.Analysis{}, fmt.Errorf("%w: ensure the model runtime is running and the model is installed", ErrGeneratorUnavailable)
	}

	n.logger.Info("starting new project",
		"story_type", prompt.StoryType,
		"genre", prompt.Genre)

	analysis, err := n.analyzer.Analyze(ctx, prompt)
	if err != nil {
		return story.Analysis{}, err
	}

	bootstrap := &story.Bootstrap{
		Prompt:   prompt,
		Analysis: analysis,
		Stage:    "questions",
	}
	if err := n.store.SaveBootstrap(bootstrap); err != nil {
		return story.Analysis{}, fmt.Errorf("saving project state: %w", err)
	}

	return analysis, nil
}

// FollowUpQuestions generates additional questions from the bootstrap
// analysis and the answers given so far.
func (n *NovelWriter) FollowUpQuestions(ctx context.Context, answers map[string]string) ([]story.Question, error) {
	bootstrap, err := n.store.LoadBootstrap()
	if err != nil {
		if errors.Is(err, story.ErrNoProject) {
			return nil, fmt.Errorf("%w: start a new project first", ErrNoActiveProject)
		}
		return nil, err
	}
	return n.analyzer.FollowUpQuestions(ctx, bootstrap.Analysis, answers)
}

// AnswerQuestions consumes the bootstrap state, builds the first outline and
// creates the durable story context. This is the one-time bootstrap of
// durable state; the transient file is deleted on success.
func (n *NovelWriter) AnswerQuestions(ctx context.Context, answers map[string]string) (story.Outline, error) {
	if _, err := n.store.Load(); err == nil {
		return story.Outline{}, &PreconditionError{
			Op:     "answer questions",
			Reason: "project already has an outline; use outline revision instead",
		}
	} else if !errors.Is(err, story.ErrNoProject) {
		return story.Outline{}, err
	}

	bootstrap, err := n.store.LoadBootstrap()
	if err != nil {
		if errors.Is(err, story.ErrNoProject) {
			return story.Outline{}, fmt.Errorf("%w: start a new project first", ErrNoActiveProject)
		}
		return story.Outline{}, err
	}

	outline, err := n.outliner.CreateOutline(ctx, bootstrap.Prompt, bootstrap.Analysis, answers)
	if err != nil {
		return story.Outline{}, err
	}

	sctx := story.NewContext(outline)
	if bootstrap.Prompt.StylePreferences != "" {
		sctx.StyleNotes = bootstrap.Prompt.StylePreferences
	}
	if err := n.store.Save(sctx); err != nil {
		return story.Outline{}, fmt.Errorf("saving story context: %w", err)
	}
	if err := n.store.ClearBootstrap(); err != nil {
		return story.Outline{}, err
	}

	n.logger.Info("outline created and context bootstrapped",
		"title", outline.Title,
		"chapters", len(outline.Chapters))

	return outline, nil
}

// ApproveOutline either accepts the current outline (approved=true, nil
// result) or revises it from the feedback. Unapproved with empty feedback is
// rejected before any generation call. Revision is a whole-outline replace
// and is refused once any chapter has been finalized.
func (n *NovelWriter) ApproveOutline(ctx context.Context, approved bool, feedback string) (*story.Outline, error) {
	if approved {
		return nil, nil
	}
	if feedback == "" {
		return nil, &PreconditionError{
			Op:     "approve outline",
			Reason: "feedback is required when outline is not approved",
		}
	}

	sctx, err := n.store.Load()
	if err != nil {
		return nil, err
	}
	if len(sctx.CompletedChapters) > 0 {
		return nil, ErrOutlineLocked
	}

	revised, err := n.outliner.ReviseOutline(ctx, sctx.Outline, feedback)
	if err != nil {
		return nil, err
	}

	sctx.Outline = revised
	if err := n.store.Save(sctx); err != nil {
		return nil, fmt.Errorf("saving revised outline: %w", err)
	}

	return &revised, nil
}

// DraftResult is the outcome of one write-next-chapter cycle.
type DraftResult struct {
	Completed    bool
	Message      string
	ChapterIndex int
	ChapterTitle string
	Content      string
	Critique     story.Critique
	WordCount    int
}

// WriteNextChapter drafts the chapter at the cursor and critiques it in the
// same cycle; critique is mandatory, not optional. When the cursor is past
// the last chapter it returns a completion signal, performing no generation
// call and no state mutation.
func (n *NovelWriter) WriteNextChapter(ctx context.Context, extraInstructions string) (*DraftResult, error) {
	sctx, err := n.store.Load()
	if err != nil {
		return nil, err
	}

	if sctx.CurrentChapter >= len(sctx.Outline.Chapters) {
		return &DraftResult{Completed: true, Message: "Story is complete!"}, nil
	}

	index := sctx.CurrentChapter
	content, err := n.engine.WriteChapter(ctx, index, sctx, extraInstructions)
	if err != nil {
		return nil, err
	}

	critique, err := n.critic.CritiqueChapter(ctx, content, index, sctx)
	if err != nil {
		return nil, err
	}

	return &DraftResult{
		ChapterIndex: index,
		ChapterTitle: sctx.Outline.Chapters[index].Title,
		Content:      content,
		Critique:     critique,
		WordCount:    story.WordCount(content),
	}, nil
}

// ContinueChapter extends the latest draft for the current chapter and logs
// the extended draft as a new session, keeping the audit trail complete.
func (n *NovelWriter) ContinueChapter(ctx context.Context, note string) (string, error) {
	sctx, err := n.store.Load()
	if err != nil {
		return "", err
	}
	if sctx.CurrentChapter >= len(sctx.Outline.Chapters) {
		return "", ErrStoryComplete
	}

	session, err := n.store.LatestSessionFor(sctx.CurrentChapter)
	if err != nil {
		return "", &PreconditionError{
			Op:     "continue chapter",
			Reason: fmt.Sprintf("no draft exists for chapter %d; write it first", sctx.CurrentChapter+1),
		}
	}

	extended, err := n.engine.ContinueChapter(ctx, sctx.CurrentChapter, session.ContentWritten, sctx, note)
	if err != nil {
		return "", err
	}

	if err := n.store.AppendSession(story.Session{
		ID:             uuid.New().String(),
		ChapterIndex:   sctx.CurrentChapter,
		ContentWritten: extended,
		WordCount:      story.WordCount(extended),
		Timestamp:      time.Now().Format(time.RFC3339),
	}); err != nil {
		return "", fmt.Errorf("recording continuation session: %w", err)
	}

	return extended, nil
}

// FinalizeChapter commits the latest draft for the current chapter. With
// approved=false a non-empty revision note is required and one free-text
// revision pass runs before the commit. The draft is resolved by chapter
// index, never by log position.
func (n *NovelWriter) FinalizeChapter(ctx context.Context, approved bool, revisions string) error {
	sctx, err := n.store.Load()
	if err != nil {
		return err
	}
	if sctx.CurrentChapter >= len(sctx.Outline.Chapters) {
		return ErrStoryComplete
	}

	session, err := n.store.LatestSessionFor(sctx.CurrentChapter)
	if err != nil {
		return &PreconditionError{
			Op:     "finalize chapter",
			Reason: fmt.Sprintf("no draft exists for chapter %d", sctx.CurrentChapter+1),
		}
	}

	content := session.ContentWritten
	if !approved {
		if revisions == "" {
			return &PreconditionError{
				Op:     "finalize chapter",
				Reason: "revision notes are required when the draft is not approved",
			}
		}
		content, err = n.ApplyRevisions(ctx, content, revisions)
		if err != nil {
			return err
		}
	}

	return n.engine.FinalizeChapter(ctx, sctx.CurrentChapter, content, sctx)
}

// ApplyRevisions rewrites chapter content per the reviewer's notes in one
// free-text pass.
func (n *NovelWriter) ApplyRevisions(ctx context.Context, content, revisionNotes string) (string, error) {
	system := `Apply the requested revisions to this chapter content.
Maintain the overall structure and story elements while addressing the specific
revision requests.`

	prompt := fmt.Sprintf(`
Original Chapter Content:
%s

Revision Notes:
%s

Apply the requested revisions while maintaining story consistency and quality.
Return the complete revised chapter.
`, content, revisionNotes)

	revised, err := n.gen.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("applying revisions: %w", err)
	}
	return revised, nil
}

// Status summarizes project progress.
type Status struct {
	Title             string
	Genre             string
	ChaptersCompleted int
	TotalChapters     int
	Percentage        float64
	WordsWritten      int
	TargetWords       int
	CurrentChapter    int
	Complete          bool
}

func (n *NovelWriter) Status() (*Status, error) {
	sctx, err := n.store.Load()
	if err != nil {
		return nil, err
	}

	total := len(sctx.Outline.Chapters)
	completed := len(sctx.CompletedChapters)

	words := 0
	for _, chapter := range sctx.CompletedChapters {
		words += story.WordCount(chapter)
	}

	return &Status{
		Title:             sctx.Outline.Title,
		Genre:             sctx.Outline.Genre,
		ChaptersCompleted: completed,
		TotalChapters:     total,
		Percentage:        float64(completed) / float64(total) * 100,
		WordsWritten:      words,
		TargetWords:       sctx.Outline.TotalWordCount,
		CurrentChapter:    sctx.CurrentChapter + 1,
		Complete:          sctx.CurrentChapter >= total,
	}, nil
}

// ExportManuscript writes the manuscript to <title>.md in the project
// directory and returns the path.
func (n *NovelWriter) ExportManuscript() (string, error) {
	sctx, err := n.store.Load()
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(n.store.Dir(), sctx.Outline.Title+".md")
	if err := n.store.ExportManuscript(outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// CritiqueReport is the result of a standalone critique run.
type CritiqueReport struct {
	Type             string // "full_story" or "chapter"
	ChapterIndex     int
	Critique         story.Critique
	ContinuityIssues []string
}

// RunCritique scans recent chapters for continuity issues and critiques
// either the whole work (when complete) or the latest finalized chapter.
func (n *NovelWriter) RunCritique(ctx context.Context) (*CritiqueReport, error) {
	sctx, err := n.store.Load()
	if err != nil {
		return nil, err
	}
	if len(sctx.CompletedChapters) == 0 {
		return nil, &PreconditionError{
			Op:     "run critique",
			Reason: "no completed chapters to critique",
		}
	}

	issues, err := n.critic.CheckContinuity(ctx, sctx, continuityWindow)
	if err != nil {
		return nil, err
	}

	if len(sctx.CompletedChapters) == len(sctx.Outline.Chapters) {
		critique, err := n.critic.CritiqueFullStory(ctx, sctx)
		if err != nil {
			return nil, err
		}
		return &CritiqueReport{
			Type:             "full_story",
			Critique:         critique,
			ContinuityIssues: issues,
		}, nil
	}

	latestIndex := len(sctx.CompletedChapters) - 1
	critique, err := n.critic.CritiqueChapter(ctx, sctx.CompletedChapters[latestIndex], latestIndex, sctx)
	if err != nil {
		return nil, err
	}
	return &CritiqueReport{
		Type:             "chapter",
		ChapterIndex:     latestIndex,
		Critique:         critique,
		ContinuityIssues: issues,
	}, nil
}

// SuggestImprovements turns a critique into concrete revision advice.
func (n *NovelWriter) SuggestImprovements(ctx context.Context, content string, critique story.Critique) (string, error) {
	return n.critic.SuggestImprovements(ctx, content, critique)
}
