package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoProject signals that no durable context exists yet in the project
// directory. Distinct from transport or serialization failures so callers
// can tell "not started" apart from "broken".
var ErrNoProject = errors.New("no active project")

const (
	contextFile   = "story_context.json"
	sessionsFile  = "writing_sessions.json"
	bootstrapFile = "pending_project.json"
)

// Store is the sole writer of durable state for one project directory. State
// is reloaded from disk on every access rather than cached, so the workflow
// survives process restarts; one writer process per directory is assumed.
type Store struct {
	projectDir string
	logger     *slog.Logger
}

func NewStore(projectDir string) (*Store, error) {
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}
	return &Store{
		projectDir: projectDir,
		logger:     slog.Default().With("component", "store", "project_dir", projectDir),
	}, nil
}

// Dir returns the project directory the store writes into.
func (s *Store) Dir() string {
	return s.projectDir
}

// writeAtomic replaces path with data via a temp file and rename, so a crash
// mid-write leaves the previous state untouched.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.projectDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Save serializes the full context in one whole-state overwrite.
func (s *Store) Save(sctx *Context) error {
	data, err := json.MarshalIndent(sctx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling context: %w", err)
	}

	if err := s.writeAtomic(filepath.Join(s.projectDir, contextFile), data); err != nil {
		return err
	}

	s.logger.Debug("context saved",
		"completed_chapters", len(sctx.CompletedChapters),
		"current_chapter", sctx.CurrentChapter,
		"bytes", len(data))
	return nil
}

// Load returns the persisted context, or ErrNoProject if none exists.
func (s *Store) Load() (*Context, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir, contextFile))
	if os.IsNotExist(err) {
		return nil, ErrNoProject
	}
	if err != nil {
		return nil, fmt.Errorf("reading context: %w", err)
	}

	var sctx Context
	if err := json.Unmarshal(data, &sctx); err != nil {
		return nil, fmt.Errorf("parsing context: %w", err)
	}
	if sctx.CharacterArcs == nil {
		sctx.CharacterArcs = map[string]string{}
	}
	if sctx.PlotThreads == nil {
		sctx.PlotThreads = map[string]string{}
	}
	if sctx.WorldBuildingNotes == nil {
		sctx.WorldBuildingNotes = map[string]string{}
	}
	return &sctx, nil
}

// AppendSession adds one record to the append-only session log. The log is
// independent of the context file; a drafted-but-not-finalized chapter
// survives an interrupted process here.
func (s *Store) AppendSession(session Session) error {
	sessions, err := s.Sessions()
	if err != nil {
		return err
	}
	sessions = append(sessions, session)

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}
	if err := s.writeAtomic(filepath.Join(s.projectDir, sessionsFile), data); err != nil {
		return err
	}

	s.logger.Debug("session appended",
		"session_id", session.ID,
		"chapter_index", session.ChapterIndex,
		"word_count", session.WordCount,
		"total_sessions", len(sessions))
	return nil
}

// Sessions returns the full session log in append order.
func (s *Store) Sessions() ([]Session, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir, sessionsFile))
	if os.IsNotExist(err) {
		return []Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parsing sessions: %w", err)
	}
	return sessions, nil
}

// LatestSessionFor returns the most recent session logged for the given
// chapter. Sessions are resolved by chapter index, never by log position, so
// interleaved drafts for other chapters cannot be committed by mistake.
func (s *Store) LatestSessionFor(chapterIndex int) (Session, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return Session{}, err
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].ChapterIndex == chapterIndex {
			return sessions[i], nil
		}
	}
	return Session{}, fmt.Errorf("no session recorded for chapter %d", chapterIndex)
}

// RecentContent concatenates, in order, the last n completed chapters
// strictly before the cursor. Windowed so prompt size stays bounded no matter
// how long the story grows.
func (s *Store) RecentContent(n int) (string, error) {
	sctx, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNoProject) {
			return "", nil
		}
		return "", err
	}

	start := sctx.CurrentChapter - n
	if start < 0 {
		start = 0
	}
	end := sctx.CurrentChapter
	if end > len(sctx.CompletedChapters) {
		end = len(sctx.CompletedChapters)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(sctx.CompletedChapters[start:end], "\n\n"), nil
}

// CharacterSummary renders each main character with their latest arc status.
func (s *Store) CharacterSummary() (string, error) {
	sctx, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNoProject) {
			return "", nil
		}
		return "", err
	}

	var parts []string
	for _, ch := range sctx.Outline.MainCharacters {
		arc := sctx.CharacterArcs[ch.Name]
		if arc == "" {
			arc = "No arc updates"
		}
		parts = append(parts, fmt.Sprintf("%s (%s): %s\nCurrent Arc: %s", ch.Name, ch.Role, ch.Description, arc))
	}
	return strings.Join(parts, "\n\n"), nil
}

// PlotSummary renders theme, setting and every plot thread's latest status.
func (s *Store) PlotSummary() (string, error) {
	sctx, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNoProject) {
			return "", nil
		}
		return "", err
	}

	parts := []string{
		"Theme: " + sctx.Outline.Theme,
		"Setting: " + sctx.Outline.Setting,
	}
	for _, name := range sortedKeys(sctx.PlotThreads) {
		parts = append(parts, fmt.Sprintf("%s: %s", name, sctx.PlotThreads[name]))
	}
	return strings.Join(parts, "\n"), nil
}

// UpdateCharacterArc overwrites a character's arc summary. Last write wins;
// no history is kept beyond the latest entry.
func (s *Store) UpdateCharacterArc(name, update string) error {
	return s.mutate(func(sctx *Context) {
		sctx.CharacterArcs[name] = update
	})
}

// UpdatePlotThread overwrites a plot thread's status text.
func (s *Store) UpdatePlotThread(name, update string) error {
	return s.mutate(func(sctx *Context) {
		sctx.PlotThreads[name] = update
	})
}

// AddWorldNote records or overwrites one world-building note.
func (s *Store) AddWorldNote(key, note string) error {
	return s.mutate(func(sctx *Context) {
		sctx.WorldBuildingNotes[key] = note
	})
}

// SetStyleNotes replaces the user-set style notes.
func (s *Store) SetStyleNotes(notes string) error {
	return s.mutate(func(sctx *Context) {
		sctx.StyleNotes = notes
	})
}

func (s *Store) mutate(apply func(*Context)) error {
	sctx, err := s.Load()
	if err != nil {
		return err
	}
	apply(sctx)
	return s.Save(sctx)
}

// SaveBootstrap persists the transient prompt+analysis state that exists
// before any outline is approved.
func (s *Store) SaveBootstrap(b *Bootstrap) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bootstrap state: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.projectDir, bootstrapFile), data)
}

// LoadBootstrap returns the transient bootstrap state, or ErrNoProject if
// none exists.
func (s *Store) LoadBootstrap() (*Bootstrap, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir, bootstrapFile))
	if os.IsNotExist(err) {
		return nil, ErrNoProject
	}
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap state: %w", err)
	}

	var b Bootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing bootstrap state: %w", err)
	}
	return &b, nil
}

// ClearBootstrap removes the transient state after the first durable context
// is written.
func (s *Store) ClearBootstrap() error {
	err := os.Remove(filepath.Join(s.projectDir, bootstrapFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing bootstrap state: %w", err)
	}
	return nil
}

// ExportManuscript renders title, metadata and all completed chapters in
// reading order to a flat markdown document.
func (s *Store) ExportManuscript(outputPath string) error {
	sctx, err := s.Load()
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sctx.Outline.Title)
	fmt.Fprintf(&b, "**Genre:** %s\n", sctx.Outline.Genre)
	fmt.Fprintf(&b, "**Premise:** %s\n", sctx.Outline.Premise)
	fmt.Fprintf(&b, "**Theme:** %s\n\n", sctx.Outline.Theme)
	b.WriteString("---\n\n")

	for i, content := range sctx.CompletedChapters {
		title := ""
		if i < len(sctx.Outline.Chapters) {
			title = sctx.Outline.Chapters[i].Title
		}
		fmt.Fprintf(&b, "## Chapter %d: %s\n\n", i+1, title)
		b.WriteString(content)
		b.WriteString("\n\n---\n\n")
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing manuscript: %w", err)
	}

	s.logger.Info("manuscript exported",
		"output", outputPath,
		"chapters", len(sctx.CompletedChapters))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
