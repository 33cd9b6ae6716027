package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"alfredoptarigan/swiss-cv-analyser/internal/config"
	"alfredoptarigan/swiss-cv-analyser/internal/services"
)

type options struct {
	cvPath  string
	jdPath  string
	jdText  string
	outPath string
	html    bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "analyse --cv <file>",
		Short: "Analyse a CV against Swiss hiring standards",
		Long: `Analyse a CV against a job description, or against Swiss industry
standards when no job description is given, and print the report.

Example:
  analyse --cv cv.pdf --jd job.pdf --out report.docx
  analyse --cv cv.docx --jd-text "QA Specialist, GMP, German C1"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), opts)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.cvPath, "cv", "", "CV file (PDF, DOCX or text)")
	cmd.Flags().StringVar(&opts.jdPath, "jd", "", "Job description file")
	cmd.Flags().StringVar(&opts.jdText, "jd-text", "", "Job description text")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "Write the Word report to this path")
	cmd.Flags().BoolVar(&opts.html, "html", false, "Print the report as HTML instead of Markdown")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Overall time limit")
	_ = cmd.MarkFlagRequired("cv")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-text")

	return cmd
}

func run(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	cfg := config.Load()
	config.InitLogger(cfg)
	if cfg.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}

	parser := services.NewDocumentParser()
	cvText, err := parser.ExtractTextFromFile(opts.cvPath)
	if err != nil {
		return fmt.Errorf("failed to read CV: %w", err)
	}

	jdText := opts.jdText
	if opts.jdPath != "" {
		jdText, err = parser.ExtractTextFromFile(opts.jdPath)
		if err != nil {
			return fmt.Errorf("failed to read job description: %w", err)
		}
	}

	geminiService, err := services.NewGeminiService(services.GeminiOptions{
		APIKey:          cfg.Gemini.APIKey,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Gemini: %w", err)
	}

	var standards services.StandardsRetriever
	if cfg.Qdrant.URL != "" {
		referenceIndex, err := services.NewReferenceIndex(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Qdrant unavailable, using built-in industry standard")
		} else {
			standards = services.NewStandardsRetriever(geminiService, referenceIndex)
		}
	}

	analyser := services.NewAnalyser(
		services.NewGenerationClient(
			geminiService,
			services.NewModelResolver(geminiService, cfg.Gemini.ModelCandidates, cfg.Gemini.DefaultModel),
			services.RetryPolicy{
				MaxAttempts: cfg.Generation.MaxAttempts,
				Backoff:     cfg.Generation.Backoff,
				MinInterval: cfg.Generation.MinInterval,
			},
		),
		services.NewPromptBuilder(cfg.Generation.CVCharBudget, cfg.Generation.JDCharBudget),
		standards,
	)

	report, err := analyser.Analyse(ctx, cvText, jdText)
	if err != nil {
		return errors.New(services.FailureMessage(err))
	}

	out := report.Body
	if opts.html {
		if out, err = services.RenderHTML(report.Body); err != nil {
			return fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	fmt.Println(out)

	if opts.outPath != "" {
		data, err := services.NewReportExporter().Export(*report, services.ExportMeta{
			Model:       report.Model,
			GeneratedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to export report: %w", err)
		}
		if err := os.WriteFile(opts.outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Info().Str("path", opts.outPath).Msg("✅ Report written")
	}

	return nil
}
