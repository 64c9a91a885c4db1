package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/batch"
	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/plan"
	"github.com/jackzampolin/quill/internal/providers"
)

var (
	generateParallel int
	generateRetries  int
	generateOutput   string
	generateMock     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <plan.yaml>",
	Short: "Generate chapter drafts from a book plan",
	Long: `Generate drafts for every chapter in a book plan.

Chapters are generated in parallel up to the configured limit. Each
chapter retries transient failures independently; chapters that still
fail are listed in the summary and the command exits nonzero. Completed
chapters are written to the output directory as numbered markdown files.

Examples:
  quill generate plan.yaml
  quill generate plan.yaml --parallel 5 --out drafts/
  quill generate plan.yaml --mock    # dry run without API calls`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		if generateParallel > 0 {
			cfg.Generation.MaxParallel = generateParallel
		}
		if generateRetries >= 0 {
			cfg.Generation.MaxRetries = generateRetries
		}
		outputDir := cfg.Generation.OutputDir
		if generateOutput != "" {
			outputDir = generateOutput
		}

		var gen batch.Generator
		var og *providers.OpenAIGenerator
		if generateMock {
			gen = providers.NewMockGenerator()
		} else {
			apiKey := config.ResolveEnvVars(cfg.Provider.APIKey)
			if apiKey == "" {
				return fmt.Errorf("no API key configured; set OPENAI_API_KEY or provider.api_key")
			}
			og = providers.NewOpenAIGenerator(providers.OpenAIConfig{
				APIKey:      apiKey,
				Model:       cfg.Provider.Model,
				Temperature: cfg.Provider.Temperature,
				MaxTokens:   cfg.Provider.MaxTokens,
				RateLimit:   cfg.Provider.RateLimit,
				MaxRetries:  cfg.Provider.MaxRetries,
				BaseURL:     cfg.Provider.BaseURL,
			})
			gen = og
			logger.Info("provider ready",
				"provider", og.Name(),
				"model", cfg.Provider.Model,
				"rate_limit_rpm", cfg.Provider.RateLimit,
			)
		}

		svc := batch.NewService(batch.ServiceConfig{
			MaxParallel:    cfg.Generation.MaxParallel,
			RetryOnFailure: cfg.Generation.RetryOnFailure,
			MaxRetries:     cfg.Generation.MaxRetries,
			Logger:         logger,
		}, gen)

		svc.SetProgressCallback(func(bp batch.Progress) {
			fmt.Printf("\rprogress: %3.0f%%  completed %d/%d  failed %d  in-flight %d",
				bp.OverallProgress*100,
				bp.CompletedChapters, bp.TotalChapters,
				bp.FailedChapters, bp.InProgressChapters,
			)
		})

		queue, runErr := svc.GenerateBatch(ctx, p.ChapterSpecs(), p.CharacterBible, nil)
		fmt.Println()

		if og != nil {
			st := og.RateLimiterStatus()
			logger.Info("rate limiter",
				"requests", st.TotalConsumed,
				"waited", st.TotalWaited,
				"utilization", fmt.Sprintf("%.0f%%", st.Utilization*100),
			)
		}

		if err := writeChapters(queue, outputDir); err != nil {
			return err
		}

		failed := printSummary(p, queue)
		if runErr != nil {
			return runErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d chapters failed", failed, len(p.Chapters))
		}
		return nil
	},
}

// writeChapters writes every completed chapter to outputDir as a
// numbered markdown file.
func writeChapters(queue *batch.Queue, outputDir string) error {
	jobs := queue.Jobs()

	hasCompleted := false
	for _, j := range jobs {
		if j.Status == batch.StatusCompleted {
			hasCompleted = true
			break
		}
	}
	if !hasCompleted {
		return nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, j := range jobs {
		if j.Status != batch.StatusCompleted {
			continue
		}
		path := filepath.Join(outputDir, fmt.Sprintf("chapter-%03d.md", j.ChapterNumber))
		if err := os.WriteFile(path, []byte(j.Result), 0o644); err != nil {
			return fmt.Errorf("failed to write chapter %d: %w", j.ChapterNumber, err)
		}
	}
	return nil
}

// printSummary prints a per-chapter outcome table and returns the
// number of failed chapters.
func printSummary(p *plan.BookPlan, queue *batch.Queue) int {
	progress := queue.Progress()

	fmt.Printf("\n%s: %d chapters, %d words\n", p.Title, progress.TotalChapters, progress.WordCountTotal)
	failed := 0
	for _, j := range queue.Jobs() {
		switch j.Status {
		case batch.StatusCompleted:
			fmt.Printf("  chapter %3d  %-9s  %6d words", j.ChapterNumber, j.Status, j.WordCount)
			if j.RetryCount > 0 {
				fmt.Printf("  (%d retries)", j.RetryCount)
			}
			fmt.Println()
		case batch.StatusFailed:
			failed++
			fmt.Printf("  chapter %3d  %-9s  %s\n", j.ChapterNumber, j.Status, j.Error)
		default:
			fmt.Printf("  chapter %3d  %s\n", j.ChapterNumber, j.Status)
		}
	}
	return failed
}

func init() {
	generateCmd.Flags().IntVar(&generateParallel, "parallel", 0, "max chapters generated at once (overrides config)")
	generateCmd.Flags().IntVar(&generateRetries, "retries", -1, "retries per chapter after the first attempt (overrides config)")
	generateCmd.Flags().StringVar(&generateOutput, "out", "", "output directory for completed chapters (overrides config)")
	generateCmd.Flags().BoolVar(&generateMock, "mock", false, "use the mock generator instead of the OpenAI API")
}
