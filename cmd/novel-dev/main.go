package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharatg/novel-dev/internal/config"
	"github.com/sharatg/novel-dev/internal/core"
	"github.com/sharatg/novel-dev/internal/helpers"
	"github.com/sharatg/novel-dev/internal/llm"
	"github.com/sharatg/novel-dev/internal/logging"
	"github.com/sharatg/novel-dev/internal/story"
)

var (
	storyType    string
	genre        string
	targetLength int
	instructions string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "novel-dev",
		Short: "novel-dev - AI-assisted long-form writing with a local LLM",
		Long: `novel-dev drives a multi-stage writing workflow against a local Ollama
runtime: analyze a story idea, answer clarifying questions, approve an
outline, then write chapters one at a time with critique and continuity
tracking.`,
	}

	newCmd := &cobra.Command{
		Use:   "new [project]",
		Short: "Start a new writing project",
		Long:  "Analyze a story idea, answer clarifying questions and approve an outline",
		Args:  cobra.ExactArgs(1),
		RunE:  runNew,
	}
	newCmd.Flags().StringVar(&storyType, "story-type", "novel", "Type of story (novel, screenplay, short_story)")
	newCmd.Flags().StringVar(&genre, "genre", "", "Story genre")
	newCmd.Flags().IntVar(&targetLength, "target-length", 0, "Target word count")
	rootCmd.AddCommand(newCmd)

	writeCmd := &cobra.Command{
		Use:   "write [project]",
		Short: "Write the next chapter",
		Long:  "Draft the next chapter, review its critique and approve, revise or extend it",
		Args:  cobra.ExactArgs(1),
		RunE:  runWrite,
	}
	writeCmd.Flags().StringVar(&instructions, "instructions", "", "Additional instructions for this chapter")
	rootCmd.AddCommand(writeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status [project]",
		Short: "Show project progress",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "export [project]",
		Short: "Export the manuscript as markdown",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "critique [project]",
		Short: "Run a continuity scan and critique of the work so far",
		Args:  cobra.ExactArgs(1),
		RunE:  runCritique,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "style [project] [notes]",
		Short: "Set style notes applied to every chapter prompt",
		Args:  cobra.ExactArgs(2),
		RunE:  runStyle,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "note [project] [key] [note]",
		Short: "Record a world-building note",
		Args:  cobra.ExactArgs(3),
		RunE:  runNote,
	})

	if err := rootCmd.Execute(); err != nil {
		helpers.PrintError("Error: %v", err)
		os.Exit(1)
	}
}

// setup loads config, wires logging and builds the orchestrator with an
// explicitly resolved model name.
func setup(projectName string) (*core.NovelWriter, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}

	opts := []llm.Option{
		llm.WithBaseURL(cfg.LLM.Host),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTimeout(time.Duration(cfg.LLM.Timeout) * time.Second),
		llm.WithRetry(cfg.Limits.MaxRetries),
		llm.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
	}

	// The probe resolves the configured model against what the runtime
	// actually serves; the resolved name is applied explicitly here rather
	// than mutated into shared config.
	probe := llm.NewClient(opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if resolved, err := probe.ResolveModel(ctx); err == nil && resolved != cfg.LLM.Model {
		helpers.PrintInfo("Using served model %s", resolved)
		opts = append(opts, llm.WithModel(resolved))
	}

	client := llm.NewClient(opts...)
	writer, err := core.NewNovelWriter(projectName, cfg.Paths.ProjectsDir, client)
	if err != nil {
		return nil, nil, err
	}
	return writer, cfg, nil
}

func runNew(cmd *cobra.Command, args []string) error {
	projectName := args[0]

	writer, _, err := setup(projectName)
	if err != nil {
		return err
	}

	helpers.PrintTitle("Creating new %s project: %s", storyType, projectName)

	if !writer.CheckAvailability(cmd.Context()) {
		return fmt.Errorf("local LLM not available: ensure Ollama is running and the model is installed")
	}

	content := ask("Story prompt")
	if content == "" {
		return fmt.Errorf("a story prompt is required")
	}
	stylePrefs := ask("Style preferences (optional)")

	prompt := story.Prompt{
		Content:          content,
		StoryType:        story.StoryType(storyType),
		Genre:            genre,
		TargetLength:     targetLength,
		StylePreferences: stylePrefs,
	}

	analysis, err := writer.StartProject(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	helpers.PrintSuccess("Story analyzed successfully!")
	displayAnalysis(analysis)

	answers := collectAnswers(analysis.Questions)

	if confirm("Request follow-up questions?") {
		followUps, err := writer.FollowUpQuestions(cmd.Context(), answers)
		if err != nil {
			return err
		}
		for q, a := range collectAnswers(followUps) {
			answers[q] = a
		}
	}

	helpers.PrintInfo("Generating story outline...")
	outline, err := writer.AnswerQuestions(cmd.Context(), answers)
	if err != nil {
		return err
	}

	return approvalLoop(cmd.Context(), writer, outline)
}

func approvalLoop(ctx context.Context, writer *core.NovelWriter, outline story.Outline) error {
	for {
		displayOutline(outline)
		if confirm("Approve this outline?") {
			if _, err := writer.ApproveOutline(ctx, true, ""); err != nil {
				return err
			}
			helpers.PrintSuccess("Outline approved. Run 'novel-dev write' to start writing.")
			return nil
		}

		feedback := ask("What should change?")
		revised, err := writer.ApproveOutline(ctx, false, feedback)
		if err != nil {
			return err
		}
		outline = *revised
	}
}

func runWrite(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}

	result, err := writer.WriteNextChapter(cmd.Context(), instructions)
	if err != nil {
		return err
	}
	if result.Completed {
		helpers.PrintSuccess("%s", result.Message)
		return nil
	}

	helpers.PrintTitle("Chapter %d: %s (%d words)", result.ChapterIndex+1, result.ChapterTitle, result.WordCount)
	helpers.PrintSeparator()
	fmt.Println(result.Content)
	helpers.PrintSeparator()
	displayCritique(result.Critique)

	content := result.Content
	for {
		choice := strings.ToLower(ask("Approve, revise, continue, or suggest improvements? (a/r/c/s)"))
		switch choice {
		case "a", "approve":
			if err := writer.FinalizeChapter(cmd.Context(), true, ""); err != nil {
				return err
			}
			helpers.PrintSuccess("Chapter %d finalized.", result.ChapterIndex+1)
			return nil
		case "r", "revise":
			notes := ask("Revision notes")
			if err := writer.FinalizeChapter(cmd.Context(), false, notes); err != nil {
				return err
			}
			helpers.PrintSuccess("Chapter %d revised and finalized.", result.ChapterIndex+1)
			return nil
		case "c", "continue":
			note := ask("Continuation note (optional)")
			extended, err := writer.ContinueChapter(cmd.Context(), note)
			if err != nil {
				return err
			}
			content = extended
			helpers.PrintSeparator()
			fmt.Println(extended)
			helpers.PrintSeparator()
		case "s", "suggest":
			suggestions, err := writer.SuggestImprovements(cmd.Context(), content, result.Critique)
			if err != nil {
				return err
			}
			helpers.PrintInfo("Suggested improvements:")
			fmt.Println(suggestions)
		default:
			helpers.PrintWarning("Please answer a, r, c, or s")
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}

	status, err := writer.Status()
	if err != nil {
		if errors.Is(err, core.ErrNoActiveProject) {
			helpers.PrintWarning("No active project found")
			return nil
		}
		return err
	}

	helpers.PrintTitle("%s (%s)", status.Title, status.Genre)
	helpers.PrintProgress(status.ChaptersCompleted, status.TotalChapters,
		fmt.Sprintf("%.0f%% complete, %d/%d words", status.Percentage, status.WordsWritten, status.TargetWords))
	if status.Complete {
		helpers.PrintSuccess("Story is complete!")
	} else {
		helpers.PrintInfo("Next chapter: %d", status.CurrentChapter)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}

	path, err := writer.ExportManuscript()
	if err != nil {
		return err
	}
	helpers.PrintSuccess("Manuscript exported to %s", path)
	return nil
}

func runCritique(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}

	report, err := writer.RunCritique(cmd.Context())
	if err != nil {
		return err
	}

	if report.Type == "full_story" {
		helpers.PrintTitle("Full story critique")
	} else {
		helpers.PrintTitle("Critique of chapter %d", report.ChapterIndex+1)
	}
	displayCritique(report.Critique)

	if len(report.ContinuityIssues) > 0 {
		helpers.PrintWarning("Continuity issues:")
		for _, issue := range report.ContinuityIssues {
			fmt.Printf("  • %s\n", issue)
		}
	} else {
		helpers.PrintSuccess("No continuity issues found")
	}
	return nil
}

func runStyle(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}
	if err := writer.Store().SetStyleNotes(args[1]); err != nil {
		return err
	}
	helpers.PrintSuccess("Style notes updated")
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	writer, _, err := setup(args[0])
	if err != nil {
		return err
	}
	if err := writer.Store().AddWorldNote(args[1], args[2]); err != nil {
		return err
	}
	helpers.PrintSuccess("World-building note recorded")
	return nil
}

func displayAnalysis(analysis story.Analysis) {
	if len(analysis.Strengths) > 0 {
		helpers.PrintInfo("Strengths:")
		for _, s := range analysis.Strengths {
			fmt.Printf("  • %s\n", s)
		}
	}
	if len(analysis.Gaps) > 0 {
		helpers.PrintWarning("Areas needing development:")
		for _, gap := range analysis.Gaps {
			fmt.Printf("  • %s (Severity: %d/5)\n", gap.Description, gap.Severity)
		}
	}
	helpers.PrintInfo("Complexity Score: %d/10", analysis.ComplexityScore)
}

func displayOutline(outline story.Outline) {
	helpers.PrintTitle("Story Outline: %s", outline.Title)
	fmt.Printf("Genre: %s\nPremise: %s\nTheme: %s\nSetting: %s\n", outline.Genre, outline.Premise, outline.Theme, outline.Setting)

	helpers.PrintInfo("Main characters:")
	for _, ch := range outline.MainCharacters {
		fmt.Printf("  • %s (%s): %s\n", ch.Name, ch.Role, ch.Description)
	}

	helpers.PrintInfo("Chapters (%d, %d words total):", len(outline.Chapters), outline.TotalWordCount)
	for i, chapter := range outline.Chapters {
		fmt.Printf("  %d. %s — %s (%d words)\n", i+1, chapter.Title, chapter.Summary, chapter.WordCountTarget)
	}
}

func displayCritique(critique story.Critique) {
	helpers.PrintInfo("Critique: overall %d/10, characters %d/10, plot %d/10",
		critique.OverallScore, critique.CharacterConsistency, critique.PlotCoherence)
	for _, s := range critique.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, w := range critique.Weaknesses {
		fmt.Printf("  - %s\n", w)
	}
	for _, s := range critique.Suggestions {
		fmt.Printf("  → %s\n", s)
	}
	for _, issue := range critique.ContinuityIssues {
		fmt.Printf("  ! %s\n", issue)
	}
}

func collectAnswers(questions []story.Question) map[string]string {
	answers := make(map[string]string, len(questions))
	helpers.PrintInfo("I have %d questions to help develop your story:", len(questions))
	for i, q := range questions {
		fmt.Printf("\nQuestion %d/%d (%s): %s\n", i+1, len(questions), q.Category, q.Question)
		if q.SuggestedAnswer != "" {
			fmt.Printf("Suggested: %s\n", q.SuggestedAnswer)
		}
		answers[q.Question] = ask("Your answer")
	}
	return answers
}

func ask(prompt string) string {
	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

func confirm(prompt string) bool {
	response := strings.ToLower(ask(prompt + " (y/N)"))
	return response == "y" || response == "yes"
}
