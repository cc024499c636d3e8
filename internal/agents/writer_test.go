package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/story"
)

func TestWriteChapter(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().Respond("Now write the full chapter content", "The phone rang at midnight.")
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	content, err := engine.WriteChapter(context.Background(), 0, sctx, "")
	require.NoError(t, err)
	assert.Equal(t, "The phone rang at midnight.", content)

	// Every draft attempt lands in the session log, approved or not.
	session, err := store.LatestSessionFor(0)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, 0, session.ChapterIndex)
	assert.Equal(t, content, session.ContentWritten)
	assert.Equal(t, story.WordCount(content), session.WordCount)
	assert.NotEmpty(t, session.Timestamp)

	req := mock.Requests[0]
	assert.Equal(t, 0.8, req.Temperature)
	assert.Equal(t, 3000, req.MaxTokens)
	assert.Contains(t, req.Prompt, "Write Chapter 1: The Call")
	assert.Contains(t, req.Prompt, "Target Word Count: 2000")
	assert.Contains(t, req.Prompt, "Mara Voss (protagonist)")
	assert.Contains(t, req.Prompt, "Current Arc Status: Beginning of arc")
	assert.Contains(t, req.Prompt, "main_plot: Beginning")
}

func TestWriteChapterOutOfRange(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator()
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	_, err := engine.WriteChapter(context.Background(), 5, sctx, "")
	assert.Error(t, err)
	assert.Zero(t, mock.CallCount)
}

func TestWriteChapterExtraInstructions(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator()
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	_, err := engine.WriteChapter(context.Background(), 0, sctx, "Open with weather")
	require.NoError(t, err)
	assert.Contains(t, mock.Requests[0].Prompt, "Additional Instructions: Open with weather")
}

func TestWriteChapterIncludesRecentTail(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator()
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	sctx.CompletedChapters = []string{"The pier was empty when Mara arrived."}
	sctx.CurrentChapter = 1
	require.NoError(t, store.Save(sctx))

	_, err := engine.WriteChapter(context.Background(), 1, sctx, "")
	require.NoError(t, err)
	assert.Contains(t, mock.Requests[0].Prompt, "Recent Chapter Content (for continuity):")
	assert.Contains(t, mock.Requests[0].Prompt, "The pier was empty when Mara arrived.")
}

func TestWriteChapterFailedGenerationLogsNoSession(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().Fail(llm.ErrGenerationFailed)
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	_, err := engine.WriteChapter(context.Background(), 0, sctx, "")
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)

	sessions, err := store.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestContinueChapterPreservesPrefix(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().Respond("Continue writing this chapter", "She stepped out of the car.")
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	existing := "The phone rang at midnight. Mara let it ring twice."

	got, err := engine.ContinueChapter(context.Background(), 0, existing, sctx, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, existing), "existing draft must survive byte for byte")
	assert.Equal(t, existing+"\n\nShe stepped out of the car.", got)
}

func TestContinueChapterRemainingWords(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator()
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	existing := strings.Repeat("word ", 1200)

	_, err := engine.ContinueChapter(context.Background(), 0, existing, sctx, "")
	require.NoError(t, err)
	assert.Contains(t, mock.Requests[0].Prompt, "Target another 800 words")
}

func TestFinalizeChapterAdvancesCursor(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().
		Respond("Provide a brief update on this character's arc", "Mara is drawn back into old habits").
		Respond("Current Plot Threads", `{"updates": [{"thread": "main_plot", "status": "The case has begun"}]}`)
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	require.NoError(t, store.Save(sctx))

	err := engine.FinalizeChapter(context.Background(), 0, "Chapter one prose.", sctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sctx.CurrentChapter)
	require.Len(t, sctx.CompletedChapters, 1)
	assert.Equal(t, "Chapter one prose.", sctx.CompletedChapters[0])
	assert.Equal(t, "Mara is drawn back into old habits", sctx.CharacterArcs["Mara Voss"])
	assert.Equal(t, "The case has begun", sctx.PlotThreads["main_plot"])

	// The whole context lands on disk in one save.
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sctx, loaded)
}

func TestFinalizeChapterRejectsOutOfOrder(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator()
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	err := engine.FinalizeChapter(context.Background(), 1, "prose", sctx)
	assert.Error(t, err)
	assert.Zero(t, mock.CallCount)
	assert.Empty(t, sctx.CompletedChapters)
	assert.Equal(t, 0, sctx.CurrentChapter)
}

func TestFinalizeChapterArcUpdatesMainCharactersOnly(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().
		Respond("Provide a brief update on this character's arc", "updated").
		Respond("Current Plot Threads", `{"updates": []}`)
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	sctx.Outline.Chapters[0].CharactersInvolved = []string{"Mara Voss", "Unnamed Bartender"}
	require.NoError(t, store.Save(sctx))

	require.NoError(t, engine.FinalizeChapter(context.Background(), 0, "prose", sctx))

	assert.Equal(t, "updated", sctx.CharacterArcs["Mara Voss"])
	_, tracked := sctx.CharacterArcs["Unnamed Bartender"]
	assert.False(t, tracked, "minor characters get no arc entries")
}

func TestFinalizeChapterSurvivesRefreshFailure(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().Fail(llm.ErrGenerationFailed)
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	require.NoError(t, store.Save(sctx))

	// Arc and thread refresh are best effort; commit still succeeds.
	require.NoError(t, engine.FinalizeChapter(context.Background(), 0, "prose", sctx))
	assert.Equal(t, 1, sctx.CurrentChapter)
	assert.Empty(t, sctx.CharacterArcs)
	assert.Equal(t, "Beginning", sctx.PlotThreads["main_plot"])
}

func TestThreadRefreshIgnoresUnknownThreads(t *testing.T) {
	store := newAgentStore(t)
	mock := llm.NewMockGenerator().
		Respond("Provide a brief update on this character's arc", "updated").
		Respond("Current Plot Threads", `{"updates": [
			{"thread": "MAIN_PLOT", "status": "Case-insensitive match applies"},
			{"thread": "invented_thread", "status": "should be dropped"}
		]}`)
	engine := NewWritingEngine(mock, store)

	sctx := testStoryContext(t)
	require.NoError(t, store.Save(sctx))

	require.NoError(t, engine.FinalizeChapter(context.Background(), 0, "prose", sctx))

	assert.Equal(t, "Case-insensitive match applies", sctx.PlotThreads["main_plot"])
	_, invented := sctx.PlotThreads["invented_thread"]
	assert.False(t, invented, "updates never create new threads")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("", 5))
}
