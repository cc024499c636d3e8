package agents

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharatg/novel-dev/internal/story"
)

const analysisJSON = `{
  "gaps": [
    {"description": "The antagonist's motivation is unclear", "category": "character", "severity": 4}
  ],
  "questions": [
    {"question": "What drives the antagonist?", "category": "character", "importance": 5},
    {"question": "What era is the story set in?", "category": "setting", "importance": 3}
  ],
  "strengths": ["Strong central premise"],
  "genre_analysis": "Classic detective fiction with noir elements",
  "complexity_score": 6
}`

const followUpJSON = `{
  "questions": [
    {"question": "How does the detective know the victim?", "category": "plot", "importance": 4},
    {"question": "Is the city real or invented?", "category": "setting", "importance": 2}
  ]
}`

const outlineJSON = `{
  "title": "The Hollow Alibi",
  "premise": "A retired detective is pulled into one last case",
  "theme": "Truth has a price",
  "setting": "Rain-soaked coastal city",
  "genre": "Mystery",
  "main_characters": [
    {"name": "Mara Voss", "role": "protagonist", "description": "Retired homicide detective"},
    {"name": "Elias Krenn", "role": "antagonist", "description": "Charismatic property magnate"}
  ],
  "chapters": [
    {"title": "The Call", "summary": "Mara gets the call", "key_events": ["phone call", "drive to the pier"], "characters_involved": ["Mara Voss"], "word_count_target": 2000},
    {"title": "Old Wounds", "summary": "Mara revisits the precinct", "key_events": ["precinct visit"], "characters_involved": ["Mara Voss", "Elias Krenn"], "word_count_target": 2200}
  ],
  "total_word_count": 4200
}`

const critiqueJSON = `{
  "overall_score": 7,
  "strengths": ["Atmospheric opening"],
  "weaknesses": ["Pacing drags in the middle"],
  "suggestions": ["Tighten the precinct scene"],
  "continuity_issues": [],
  "character_consistency": 8,
  "plot_coherence": 7
}`

func testStoryContext(t *testing.T) *story.Context {
	t.Helper()
	outline := story.Outline{
		Title:   "The Hollow Alibi",
		Premise: "A retired detective is pulled into one last case",
		Theme:   "Truth has a price",
		Setting: "Rain-soaked coastal city",
		Genre:   "Mystery",
		MainCharacters: []story.Character{
			{Name: "Mara Voss", Role: "protagonist", Description: "Retired homicide detective"},
			{Name: "Elias Krenn", Role: "antagonist", Description: "Charismatic property magnate"},
		},
		Chapters: []story.Chapter{
			{Title: "The Call", Summary: "Mara gets the call", KeyEvents: []string{"phone call"}, CharactersInvolved: []string{"Mara Voss"}, WordCountTarget: 2000},
			{Title: "Old Wounds", Summary: "Mara revisits the precinct", KeyEvents: []string{"precinct visit"}, CharactersInvolved: []string{"Mara Voss", "Elias Krenn"}, WordCountTarget: 2200},
		},
		TotalWordCount: 4200,
	}
	return story.NewContext(outline)
}

func newAgentStore(t *testing.T) *story.Store {
	t.Helper()
	store, err := story.NewStore(filepath.Join(t.TempDir(), "proj"))
	require.NoError(t, err)
	return store
}
