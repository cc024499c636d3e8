package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/story"
)

// Prompt excerpt budgets. The writing prompt must stay bounded regardless of
// how long the manuscript grows, so history goes in as a truncated tail.
const (
	recentTailBytes    = 2000
	arcContentBytes    = 1500
	threadContentBytes = 1500
	recentWindow       = 2
)

// WritingEngine composes bounded context windows into chapter-prose
// generation calls and commits finalized chapters.
type WritingEngine struct {
	gen    llm.Generator
	store  *story.Store
	logger *slog.Logger
}

func NewWritingEngine(gen llm.Generator, store *story.Store) *WritingEngine {
	return &WritingEngine{
		gen:    gen,
		store:  store,
		logger: slog.Default().With("component", "writing_engine"),
	}
}

const writerSystemPrompt = `You are a professional novelist. Write engaging, well-crafted prose
that maintains consistency with the established story, characters, and world.

Key guidelines:
- Maintain character voice and personality
- Follow the established writing style
- Ensure plot coherence with previous chapters
- Write vivid, immersive scenes
- Show don't tell
- Use appropriate pacing for the genre
- Include dialogue that advances plot and character development`

// WriteChapter drafts one chapter from a bounded prompt. Every invocation
// appends a session record before returning, whether or not the caller later
// approves the draft; the session log is a complete audit trail of attempts.
func (w *WritingEngine) WriteChapter(ctx context.Context, chapterIndex int, sctx *story.Context, extraInstructions string) (string, error) {
	if chapterIndex < 0 || chapterIndex >= len(sctx.Outline.Chapters) {
		return "", fmt.Errorf("chapter index %d out of range (0-%d)", chapterIndex, len(sctx.Outline.Chapters)-1)
	}

	chapter := sctx.Outline.Chapters[chapterIndex]

	w.logger.Info("writing chapter",
		"chapter_index", chapterIndex,
		"title", chapter.Title,
		"word_count_target", chapter.WordCountTarget)

	prompt, err := w.buildWritingPrompt(chapter, sctx, extraInstructions)
	if err != nil {
		return "", err
	}

	// Token budget tracks the chapter target with room for natural overrun.
	content, err := w.gen.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      writerSystemPrompt,
		Temperature: 0.8,
		MaxTokens:   chapter.WordCountTarget * 3 / 2,
	})
	if err != nil {
		w.logger.Error("chapter generation failed",
			"chapter_index", chapterIndex,
			"error", err)
		return "", fmt.Errorf("writing chapter %d: %w", chapterIndex+1, err)
	}

	session := story.Session{
		ID:             uuid.New().String(),
		ChapterIndex:   chapterIndex,
		ContentWritten: content,
		WordCount:      story.WordCount(content),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
	if err := w.store.AppendSession(session); err != nil {
		return "", fmt.Errorf("recording writing session: %w", err)
	}

	w.logger.Info("chapter drafted",
		"chapter_index", chapterIndex,
		"session_id", session.ID,
		"word_count", session.WordCount)

	return content, nil
}

// ContinueChapter extends an existing draft. The existing text is used only
// as grounding context and is preserved byte-for-byte as the prefix of the
// result, separated from the new prose by a blank line.
func (w *WritingEngine) ContinueChapter(ctx context.Context, chapterIndex int, existingContent string, sctx *story.Context, continuationNote string) (string, error) {
	if chapterIndex < 0 || chapterIndex >= len(sctx.Outline.Chapters) {
		return "", fmt.Errorf("chapter index %d out of range (0-%d)", chapterIndex, len(sctx.Outline.Chapters)-1)
	}

	chapter := sctx.Outline.Chapters[chapterIndex]
	remaining := chapter.WordCountTarget - story.WordCount(existingContent)
	if remaining < 0 {
		remaining = 0
	}

	w.logger.Info("continuing chapter",
		"chapter_index", chapterIndex,
		"existing_words", story.WordCount(existingContent),
		"remaining_words", remaining)

	prompt := fmt.Sprintf(`
Continue writing this chapter:

Chapter: %s
Chapter Summary: %s
Key Events Still Needed: %s

Existing Content:
%s

%s

Continue the chapter, picking up seamlessly from where it left off.
Target another %d words approximately.
`,
		chapter.Title,
		chapter.Summary,
		strings.Join(chapter.KeyEvents, ", "),
		existingContent,
		continuationNote,
		remaining)

	system := `Continue writing this chapter seamlessly. Maintain the same voice,
style, and pacing. Pick up exactly where the previous content left off.`

	continuation, err := w.gen.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("continuing chapter %d: %w", chapterIndex+1, err)
	}

	return existingContent + "\n\n" + continuation, nil
}

func (w *WritingEngine) buildWritingPrompt(chapter story.Chapter, sctx *story.Context, extraInstructions string) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Write Chapter %d: %s\n", sctx.CurrentChapter+1, chapter.Title)
	fmt.Fprintf(&b, "\nChapter Summary: %s\n", chapter.Summary)
	fmt.Fprintf(&b, "\nKey Events to Include: %s\n", strings.Join(chapter.KeyEvents, ", "))
	fmt.Fprintf(&b, "\nCharacters Involved: %s\n", strings.Join(chapter.CharactersInvolved, ", "))
	fmt.Fprintf(&b, "\nTarget Word Count: %d\n", chapter.WordCountTarget)

	b.WriteString("\n\nStory Context:\n")
	fmt.Fprintf(&b, "Title: %s\n", sctx.Outline.Title)
	fmt.Fprintf(&b, "Genre: %s\n", sctx.Outline.Genre)
	fmt.Fprintf(&b, "Theme: %s\n", sctx.Outline.Theme)
	fmt.Fprintf(&b, "Setting: %s\n", sctx.Outline.Setting)

	if sctx.StyleNotes != "" {
		fmt.Fprintf(&b, "\nStyle Notes: %s\n", sctx.StyleNotes)
	}

	b.WriteString("\nMain Characters:\n")
	for _, ch := range sctx.Outline.MainCharacters {
		arcStatus := sctx.CharacterArcs[ch.Name]
		if arcStatus == "" {
			arcStatus = "Beginning of arc"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", ch.Name, ch.Role, ch.Description)
		fmt.Fprintf(&b, "  Current Arc Status: %s\n", arcStatus)
	}

	if len(sctx.PlotThreads) > 0 {
		b.WriteString("\nActive Plot Threads:\n")
		for _, name := range sortedAnswerKeys(sctx.PlotThreads) {
			fmt.Fprintf(&b, "- %s: %s\n", name, sctx.PlotThreads[name])
		}
	}

	if len(sctx.WorldBuildingNotes) > 0 {
		b.WriteString("\nWorld Building Notes:\n")
		for _, key := range sortedAnswerKeys(sctx.WorldBuildingNotes) {
			fmt.Fprintf(&b, "- %s: %s\n", key, sctx.WorldBuildingNotes[key])
		}
	}

	// Continuity comes from a truncated tail of the last chapters, never the
	// full manuscript.
	recent, err := w.store.RecentContent(recentWindow)
	if err != nil {
		return "", fmt.Errorf("loading recent content: %w", err)
	}
	if recent != "" {
		b.WriteString("\nRecent Chapter Content (for continuity):\n")
		b.WriteString(truncate(recent, recentTailBytes))
		b.WriteString("\n")
	}

	if extraInstructions != "" {
		fmt.Fprintf(&b, "\nAdditional Instructions: %s\n", extraInstructions)
	}

	b.WriteString("\nNow write the full chapter content:")

	return b.String(), nil
}

// FinalizeChapter commits content as the chapter's canonical prose, advances
// the cursor, refreshes character arcs and plot threads, and persists the
// whole context in one atomic save. The index must equal the current cursor;
// out-of-order commits are rejected before any generation call.
func (w *WritingEngine) FinalizeChapter(ctx context.Context, chapterIndex int, content string, sctx *story.Context) error {
	if chapterIndex != sctx.CurrentChapter {
		return fmt.Errorf("cannot finalize chapter %d: current chapter is %d", chapterIndex, sctx.CurrentChapter)
	}
	if chapterIndex >= len(sctx.Outline.Chapters) {
		return fmt.Errorf("chapter index %d out of range (0-%d)", chapterIndex, len(sctx.Outline.Chapters)-1)
	}

	sctx.CompletedChapters = append(sctx.CompletedChapters, content)
	sctx.CurrentChapter = chapterIndex + 1

	w.refreshCharacterArcs(ctx, chapterIndex, content, sctx)
	w.refreshPlotThreads(ctx, chapterIndex, content, sctx)

	if err := w.store.Save(sctx); err != nil {
		return fmt.Errorf("persisting finalized chapter: %w", err)
	}

	w.logger.Info("chapter finalized",
		"chapter_index", chapterIndex,
		"current_chapter", sctx.CurrentChapter,
		"completed_chapters", len(sctx.CompletedChapters))

	return nil
}

// refreshCharacterArcs overwrites the arc entry of each main character who
// appears in the chapter. Last write wins. Arc updates are best effort: a
// failed call leaves the previous entry in place and finalization proceeds.
func (w *WritingEngine) refreshCharacterArcs(ctx context.Context, chapterIndex int, content string, sctx *story.Context) {
	chapter := sctx.Outline.Chapters[chapterIndex]

	mainNames := make(map[string]bool, len(sctx.Outline.MainCharacters))
	for _, ch := range sctx.Outline.MainCharacters {
		mainNames[ch.Name] = true
	}

	system := `Analyze this chapter content and update character arcs based on
their development, decisions, and growth shown in the chapter.`

	for _, name := range chapter.CharactersInvolved {
		if !mainNames[name] {
			continue
		}

		previous := sctx.CharacterArcs[name]
		if previous == "" {
			previous = "Beginning"
		}

		prompt := fmt.Sprintf(`
Character: %s
Previous Arc Status: %s
Chapter Content: %s

Provide a brief update on this character's arc development in this chapter.
`, name, previous, truncate(content, arcContentBytes))

		update, err := w.gen.Generate(ctx, llm.GenerateRequest{
			Prompt:      prompt,
			System:      system,
			Temperature: 0.5,
		})
		if err != nil {
			w.logger.Warn("character arc refresh failed",
				"character", name,
				"chapter_index", chapterIndex,
				"error", err)
			continue
		}
		sctx.CharacterArcs[name] = update
	}
}

// refreshPlotThreads asks for explicit per-thread status updates in one
// structured call. Only updates whose thread name matches an existing entry
// (case-insensitive) are applied. Best effort, like arc refresh.
func (w *WritingEngine) refreshPlotThreads(ctx context.Context, chapterIndex int, content string, sctx *story.Context) {
	if len(sctx.PlotThreads) == 0 {
		return
	}

	var threadList strings.Builder
	for _, name := range sortedAnswerKeys(sctx.PlotThreads) {
		fmt.Fprintf(&threadList, "- %s: %s\n", name, sctx.PlotThreads[name])
	}

	prompt := fmt.Sprintf(`
Chapter %d Content: %s

Current Plot Threads:
%s
For each plot thread that was advanced or affected in this chapter, provide
its name and a brief updated status. Only include threads that changed.
`, chapterIndex+1, truncate(content, threadContentBytes), threadList.String())

	system := `Analyze this chapter and update the status of relevant plot threads
based on how they advanced or resolved.`

	result, err := llm.Structured[struct {
		Updates []struct {
			Thread string `json:"thread"`
			Status string `json:"status"`
		} `json:"updates"`
	}](ctx, w.gen, prompt, system, threadUpdateSchema)
	if err != nil {
		w.logger.Warn("plot thread refresh failed",
			"chapter_index", chapterIndex,
			"error", err)
		return
	}

	for _, update := range result.Updates {
		for name := range sctx.PlotThreads {
			if strings.EqualFold(name, update.Thread) {
				sctx.PlotThreads[name] = update.Status
				break
			}
		}
	}
}
