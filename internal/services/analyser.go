package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
)

// Analyser runs the CV summary, JD summary and final synthesis chain.
type Analyser interface {
	Analyse(ctx context.Context, cvText, jdText string) (*Report, error)
}

type analyserService struct {
	generator TextGenerator
	prompts   *PromptBuilder
	standards StandardsRetriever
	jdBudget  int
}

// NewAnalyser builds the pipeline. standards may be nil, in which case an
// analysis without job description is compared with IndustryStandardJD.
func NewAnalyser(generator TextGenerator, prompts *PromptBuilder, standards StandardsRetriever) Analyser {
	return &analyserService{
		generator: generator,
		prompts:   prompts,
		standards: standards,
		jdBudget:  prompts.jdBudget,
	}
}

// Analyse never calls the provider for a blank CV. The calls are strictly
// sequential and the first diagnostic aborts the chain.
func (a *analyserService) Analyse(ctx context.Context, cvText, jdText string) (*Report, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, ErrEmptyCV
	}

	log.Debug().Int("cv_chars", len(cvText)).Int("jd_chars", len(jdText)).Msg("📄 Summarising CV...")
	cvSummary, err := a.step(ctx, "CV summary", a.prompts.BuildCVSummaryPrompt(cvText))
	if err != nil {
		return nil, err
	}

	jdSummary, err := a.jobRequirements(ctx, cvText, jdText)
	if err != nil {
		return nil, err
	}

	log.Debug().Msg("🤖 Generating final evaluation...")
	final := a.generator.Generate(ctx, a.prompts.BuildFinalPrompt(cvSummary.Text, jdSummary))
	if err := stepError("final evaluation", final); err != nil {
		return nil, err
	}

	report := ParseReport(final.Text)
	report.Model = final.Model
	return &report, nil
}

func (a *analyserService) jobRequirements(ctx context.Context, cvText, jdText string) (string, error) {
	if strings.TrimSpace(jdText) != "" {
		log.Debug().Msg("📄 Summarising job description...")
		result, err := a.step(ctx, "job description summary", a.prompts.BuildJDSummaryPrompt(jdText))
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}

	if a.standards != nil {
		standards, err := a.standards.RetrieveStandards(ctx, cvText)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to retrieve reference standards")
		} else if standards != "" {
			return TruncateRunes(standards, a.jdBudget), nil
		}
	}

	return IndustryStandardJD, nil
}

func (a *analyserService) step(ctx context.Context, name, prompt string) (GenerationResult, error) {
	result := a.generator.Generate(ctx, prompt)
	return result, stepError(name, result)
}

func stepError(name string, result GenerationResult) error {
	if !result.OK() {
		return &GenerationError{Step: name, Diagnostic: result.Diagnostic(), Err: result.Failure}
	}
	if result.Text == "" {
		return &GenerationError{Step: name, Diagnostic: DiagnosticPrefix + ErrEmptyResponse.Error(), Err: ErrEmptyResponse}
	}
	return nil
}

// AnalysisRunner executes a stored analysis; it is what the worker calls.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, id uuid.UUID) error
}

type analysisRunner struct {
	repo     repositories.AnalysisRepository
	analyser Analyser
	exporter ReportExporter
	store    ReportStore
	notifier StatusNotifier
}

func NewAnalysisRunner(
	repo repositories.AnalysisRepository,
	analyser Analyser,
	exporter ReportExporter,
	store ReportStore,
	notifier StatusNotifier,
) AnalysisRunner {
	if notifier == nil {
		notifier = NewNoopNotifier()
	}

	return &analysisRunner{
		repo:     repo,
		analyser: analyser,
		exporter: exporter,
		store:    store,
		notifier: notifier,
	}
}

func (r *analysisRunner) RunAnalysis(ctx context.Context, id uuid.UUID) error {
	analysis, err := r.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	if analysis.Status.IsTerminal() {
		log.Debug().Str("analysis_id", id.String()).Str("status", string(analysis.Status)).Msg("⏭️ Skipping finished analysis")
		return nil
	}

	if err := r.repo.UpdateStatus(id, models.StatusProcessing); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			log.Debug().Str("analysis_id", id.String()).Msg("⏭️ Analysis finished before it started")
			return nil
		}
		return fmt.Errorf("failed to update status: %w", err)
	}
	r.notify(models.StatusUpdate{ID: id.String(), Status: string(models.StatusProcessing)})

	log.Info().Str("analysis_id", id.String()).Msg("🔄 Starting analysis")
	started := time.Now()

	report, err := r.analyser.Analyse(ctx, analysis.CVText, analysis.JDText)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return r.fail(ctx, id, err)
	}

	if err := r.repo.UpdateResult(id, &repositories.AnalysisUpdateData{
		Model:         report.Model,
		RawResponse:   report.Raw,
		Report:        report.Body,
		CandidateName: report.Name,
		Category:      report.Category,
		Score:         report.Score,
	}); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return r.cancelled(id, err)
		}
		return fmt.Errorf("failed to save results: %w", err)
	}

	// A failed export never fails the analysis itself.
	location, exportErr := r.export(ctx, id, report)
	if exportErr != nil {
		log.Error().Err(exportErr).Str("analysis_id", id.String()).Msg("❌ Report export failed")
	}
	if err := r.repo.UpdateExport(id, location, exportErr); err != nil {
		log.Error().Err(err).Str("analysis_id", id.String()).Msg("❌ Failed to record export result")
	}

	analysesTotal.WithLabelValues(string(models.StatusCompleted)).Inc()
	r.notify(models.StatusUpdate{
		ID:       id.String(),
		Status:   string(models.StatusCompleted),
		Score:    report.Score,
		Category: report.Category,
	})

	log.Info().
		Str("analysis_id", id.String()).
		Str("model", report.Model).
		Str("category", report.Category).
		Dur("took", time.Since(started)).
		Msg("✅ Analysis completed")
	return nil
}

func (r *analysisRunner) fail(ctx context.Context, id uuid.UUID, err error) error {
	if errors.Is(context.Cause(ctx), ErrShutdown) {
		if updateErr := r.repo.UpdateStatus(id, models.StatusQueued); updateErr != nil {
			log.Error().Err(updateErr).Str("analysis_id", id.String()).Msg("❌ Failed to requeue interrupted analysis")
		}
		log.Info().Str("analysis_id", id.String()).Msg("⏸️ Analysis interrupted by shutdown, requeued")
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if markErr := r.repo.MarkCancelled(id); markErr != nil && !errors.Is(markErr, repositories.ErrAnalysisNotFound) {
			log.Error().Err(markErr).Str("analysis_id", id.String()).Msg("❌ Failed to mark analysis cancelled")
		}
		return r.cancelled(id, err)
	}

	message := FailureMessage(err)
	if updateErr := r.repo.UpdateError(id, message); updateErr != nil {
		if errors.Is(updateErr, repositories.ErrStatusConflict) {
			return r.cancelled(id, err)
		}
		log.Error().Err(updateErr).Str("analysis_id", id.String()).Msg("❌ Failed to record analysis error")
	}
	analysesTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	r.notify(models.StatusUpdate{ID: id.String(), Status: string(models.StatusFailed), Error: message})

	return fmt.Errorf("analysis failed: %w", err)
}

func (r *analysisRunner) cancelled(id uuid.UUID, err error) error {
	analysesTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	r.notify(models.StatusUpdate{ID: id.String(), Status: string(models.StatusCancelled)})
	log.Info().Str("analysis_id", id.String()).Msg("🛑 Analysis cancelled")
	return fmt.Errorf("analysis cancelled: %w", err)
}

func (r *analysisRunner) export(ctx context.Context, id uuid.UUID, report *Report) (string, error) {
	data, err := r.exporter.Export(*report, ExportMeta{Model: report.Model, GeneratedAt: time.Now()})
	if err != nil {
		return "", err
	}

	return r.store.Save(ctx, ReportFileName(id.String()), data)
}

func (r *analysisRunner) notify(update models.StatusUpdate) {
	if err := r.notifier.Publish(update); err != nil {
		log.Warn().Err(err).Str("analysis_id", update.ID).Msg("⚠️ Failed to publish status update")
	}
}

// FailureMessage is the user-facing text for a failed analysis.
func FailureMessage(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Diagnostic
	}
	return err.Error()
}
