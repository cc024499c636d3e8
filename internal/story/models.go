package story

// StoryType tags what kind of work a project produces.
type StoryType string

const (
	TypeNovel      StoryType = "novel"
	TypeScreenplay StoryType = "screenplay"
	TypeShortStory StoryType = "short_story"
)

// Prompt is the immutable input that starts a project.
type Prompt struct {
	Content          string    `json:"content" validate:"required"`
	StoryType        StoryType `json:"story_type" validate:"required,oneof=novel screenplay short_story"`
	TargetLength     int       `json:"target_length,omitempty"`
	Genre            string    `json:"genre,omitempty"`
	StylePreferences string    `json:"style_preferences,omitempty"`
}

// Question is one clarifying question produced by analysis.
type Question struct {
	Question        string `json:"question" validate:"required"`
	Category        string `json:"category"`
	Importance      int    `json:"importance" validate:"min=1,max=5"`
	SuggestedAnswer string `json:"suggested_answer,omitempty"`
}

// Gap is a missing element the analyzer flagged in the prompt.
type Gap struct {
	Description      string   `json:"description" validate:"required"`
	Category         string   `json:"category"`
	Severity         int      `json:"severity" validate:"min=1,max=5"`
	RelatedQuestions []string `json:"related_questions,omitempty"`
}

// Analysis is produced once per project by a single structured call, so the
// gaps, questions and scores are mutually consistent.
type Analysis struct {
	Gaps            []Gap      `json:"gaps" validate:"dive"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`
	Strengths       []string   `json:"strengths"`
	GenreAnalysis   string     `json:"genre_analysis,omitempty"`
	ComplexityScore int        `json:"complexity_score" validate:"min=1,max=10"`
}

// Character is a main character in the outline. Arc and Motivation are
// optional; the model fills what it can.
type Character struct {
	Name        string `json:"name" validate:"required"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Arc         string `json:"arc,omitempty"`
	Motivation  string `json:"motivation,omitempty"`
}

// Chapter is one entry in the outline. Content stays empty at outline time
// and is only filled on export views; committed prose lives in
// Context.CompletedChapters.
type Chapter struct {
	Title              string   `json:"title" validate:"required"`
	Summary            string   `json:"summary"`
	KeyEvents          []string `json:"key_events"`
	CharactersInvolved []string `json:"characters_involved"`
	WordCountTarget    int      `json:"word_count_target" validate:"min=1"`
	Content            string   `json:"content,omitempty"`
}

// Outline is the approved plan for the whole work. Chapter order is
// significant and immutable once approved; revision replaces the whole
// outline atomically.
type Outline struct {
	Title          string      `json:"title" validate:"required"`
	Premise        string      `json:"premise"`
	Theme          string      `json:"theme"`
	MainCharacters []Character `json:"main_characters" validate:"dive"`
	Setting        string      `json:"setting"`
	Chapters       []Chapter   `json:"chapters" validate:"required,min=1,dive"`
	TotalWordCount int         `json:"total_word_count"`
	Genre          string      `json:"genre"`
}

// Session is one logged attempt at producing a chapter's text, approved or
// not. The log is append-only and never pruned.
type Session struct {
	ID             string `json:"id"`
	ChapterIndex   int    `json:"chapter_index"`
	ContentWritten string `json:"content_written"`
	WordCount      int    `json:"word_count"`
	Timestamp      string `json:"timestamp"`
	CritiqueNotes  string `json:"critique_notes,omitempty"`
}

// Context is the durable state of one project. CurrentChapter is the cursor
// of the next chapter to write and equals len(CompletedChapters) at every
// stable state.
type Context struct {
	Outline           Outline           `json:"outline"`
	CompletedChapters []string          `json:"completed_chapters"`
	CurrentChapter    int               `json:"current_chapter"`
	CharacterArcs     map[string]string `json:"character_arcs"`
	PlotThreads       map[string]string `json:"plot_threads"`
	WorldBuildingNotes map[string]string `json:"world_building_notes"`
	StyleNotes        string            `json:"style_notes"`
}

// NewContext creates the first durable context once an outline is approved.
func NewContext(outline Outline) *Context {
	return &Context{
		Outline:           outline,
		CompletedChapters: []string{},
		CharacterArcs:     map[string]string{},
		PlotThreads: map[string]string{
			"main_plot":             "Beginning",
			"character_development": "Initial setup",
		},
		WorldBuildingNotes: map[string]string{},
	}
}

// Critique is the transient result of one critique call. It is surfaced to
// the caller and never persisted into the project context.
type Critique struct {
	OverallScore         int      `json:"overall_score" validate:"min=1,max=10"`
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	Suggestions          []string `json:"suggestions"`
	ContinuityIssues     []string `json:"continuity_issues"`
	CharacterConsistency int      `json:"character_consistency" validate:"min=1,max=10"`
	PlotCoherence        int      `json:"plot_coherence" validate:"min=1,max=10"`
}

// Bootstrap holds the prompt and analysis between project start and outline
// approval. It precedes the durable context and is deleted once the first
// context is written.
type Bootstrap struct {
	Prompt   Prompt   `json:"prompt"`
	Analysis Analysis `json:"analysis"`
	Stage    string   `json:"stage"`
}

// WordCount counts whitespace-separated words, the measure used for session
// records and progress reporting.
func WordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
			}
			inWord = true
		}
	}
	return count
}
