package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
)

const qaFinalAnswer = `REQUIRED METADATA:
NAME_START: Lena Keller NAME_END
CATEGORY: READY

### 1. CV PERFORMANCE SCORECARD
Overall Job-Fit Score: 84/100 (Technical 36/40 + Experience 18/20 + Swiss 15/20 + Impact 15/20)`

func success(model, text string) GenerationResult {
	return GenerationResult{Model: model, Text: text, Attempts: 1}
}

func TestAnalyser_Analyse(t *testing.T) {
	t.Run("full chain with job description", func(t *testing.T) {
		gen := &scriptedGenerator{results: []GenerationResult{
			success("gemini-2.5-flash", "Name: Lena Keller, 5 years QA, GMP, German C1"),
			success("gemini-2.5-flash", "Hard skills: GMP, CAPA, German"),
			success("gemini-2.5-flash", qaFinalAnswer),
		}}
		analyser := NewAnalyser(gen, NewPromptBuilder(0, 0), nil)

		report, err := analyser.Analyse(context.Background(), "5 years QA experience, GMP, fluent German", "QA Specialist, GMP required")
		require.NoError(t, err)

		assert.Equal(t, 3, gen.calls())
		assert.Contains(t, gen.prompts[0], "5 years QA experience")
		assert.Contains(t, gen.prompts[1], "QA Specialist, GMP required")
		assert.Contains(t, gen.prompts[2], "CV DATA: Name: Lena Keller")
		assert.Contains(t, gen.prompts[2], "JD DATA: Hard skills: GMP, CAPA, German")

		assert.Equal(t, "gemini-2.5-flash", report.Model)
		assert.Equal(t, "Lena Keller", report.Name)
		assert.Equal(t, CategoryReady, report.Category)
		require.NotNil(t, report.Score)
		assert.Equal(t, 84, *report.Score)
		assert.Contains(t, report.Body, "/100")
		assert.NotContains(t, report.Body, "NAME_START")
	})

	t.Run("empty CV makes no call", func(t *testing.T) {
		gen := &scriptedGenerator{}
		analyser := NewAnalyser(gen, NewPromptBuilder(0, 0), nil)

		_, err := analyser.Analyse(context.Background(), "  \n ", "JD")

		assert.ErrorIs(t, err, ErrEmptyCV)
		assert.Zero(t, gen.calls())
	})

	t.Run("missing job description uses industry standard", func(t *testing.T) {
		gen := &scriptedGenerator{results: []GenerationResult{
			success("m", "CV facts"),
			success("m", qaFinalAnswer),
		}}
		analyser := NewAnalyser(gen, NewPromptBuilder(0, 0), stubStandards{err: errors.New("qdrant down")})

		report, err := analyser.Analyse(context.Background(), "5 years QA experience, GMP, fluent German", "")
		require.NoError(t, err)

		assert.Equal(t, 2, gen.calls())
		assert.Contains(t, gen.prompts[1], "JD DATA: "+IndustryStandardJD)
		assert.NotEmpty(t, report.Body)
		assert.Contains(t, report.Body, "/100")
	})

	t.Run("missing job description uses retrieved standards", func(t *testing.T) {
		gen := &scriptedGenerator{results: []GenerationResult{
			success("m", "CV facts"),
			success("m", qaFinalAnswer),
		}}
		analyser := NewAnalyser(gen, NewPromptBuilder(0, 0), stubStandards{text: "Swiss CVs state the work permit."})

		_, err := analyser.Analyse(context.Background(), "CV text", "")
		require.NoError(t, err)

		assert.Contains(t, gen.prompts[1], "JD DATA: Swiss CVs state the work permit.")
	})

	t.Run("diagnostic aborts the chain", func(t *testing.T) {
		overloaded := &ProviderError{Code: http.StatusTooManyRequests, Message: "quota"}
		gen := &scriptedGenerator{results: []GenerationResult{
			{Model: "m", Attempts: 3, Failure: overloaded},
		}}
		analyser := NewAnalyser(gen, NewPromptBuilder(0, 0), nil)

		_, err := analyser.Analyse(context.Background(), "CV text", "JD text")

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "CV summary", genErr.Step)
		assert.True(t, IsDiagnostic(genErr.Diagnostic))
		assert.True(t, IsDiagnostic(FailureMessage(err)))
		assert.Equal(t, 1, gen.calls())
	})
}

func TestAnalysisRunner_RunAnalysis(t *testing.T) {
	newAnalysis := func() *models.Analysis {
		return &models.Analysis{ID: uuid.New(), Status: models.StatusQueued, CVText: "5 years QA experience, GMP, fluent German"}
	}

	t.Run("completes and exports", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		store, err := NewLocalReportStore(t.TempDir())
		require.NoError(t, err)
		notifier := &recordingNotifier{}
		gen := &scriptedGenerator{results: []GenerationResult{success("m", "facts"), success("m", qaFinalAnswer)}}

		runner := NewAnalysisRunner(repo, NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), store, notifier)
		require.NoError(t, runner.RunAnalysis(context.Background(), analysis.ID))

		stored, err := repo.FindByID(analysis.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, stored.Status)
		require.NotNil(t, stored.Score)
		assert.Equal(t, 84, *stored.Score)
		require.NotNil(t, stored.ExportLocation)
		assert.Nil(t, stored.ExportError)

		data, err := store.Open(context.Background(), ReportFileName(analysis.ID.String()))
		require.NoError(t, err)
		assert.NotEmpty(t, data)

		assert.Equal(t, []string{"processing", "completed"}, notifier.statuses())
	})

	t.Run("records diagnostic on failure", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		gen := &scriptedGenerator{results: []GenerationResult{
			{Model: "m", Failure: &ProviderError{Code: http.StatusForbidden, Message: "API key invalid"}},
		}}

		runner := NewAnalysisRunner(repo, NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), nil, nil)
		assert.Error(t, runner.RunAnalysis(context.Background(), analysis.ID))

		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.True(t, IsDiagnostic(*stored.ErrorMessage))
		assert.Contains(t, *stored.ErrorMessage, "API key invalid")
	})

	t.Run("cancelled context marks cancelled", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		gen := &scriptedGenerator{results: []GenerationResult{success("m", "facts"), success("m", qaFinalAnswer)}}

		runner := NewAnalysisRunner(repo, NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), nil, nil)
		err := runner.RunAnalysis(ctx, analysis.ID)

		assert.ErrorIs(t, err, context.Canceled)
		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
	})

	t.Run("shutdown requeues", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(ErrShutdown)
		gen := &scriptedGenerator{results: []GenerationResult{success("m", "facts"), success("m", qaFinalAnswer)}}

		runner := NewAnalysisRunner(repo, NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), nil, nil)
		assert.Error(t, runner.RunAnalysis(ctx, analysis.ID))

		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusQueued, stored.Status)
	})

	t.Run("cancel landing after generation keeps cancelled", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		store, err := NewLocalReportStore(t.TempDir())
		require.NoError(t, err)
		notifier := &recordingNotifier{}
		report := ParseReport(qaFinalAnswer)
		cancelDuringRun := analyserFunc(func(context.Context, string, string) (*Report, error) {
			require.NoError(t, repo.MarkCancelled(analysis.ID))
			return &report, nil
		})

		runner := NewAnalysisRunner(repo, cancelDuringRun, NewReportExporter(), store, notifier)
		err = runner.RunAnalysis(context.Background(), analysis.ID)

		assert.ErrorIs(t, err, repositories.ErrStatusConflict)
		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
		assert.Nil(t, stored.Report)
		assert.Nil(t, stored.ExportLocation)
		assert.Equal(t, []string{"processing", "cancelled"}, notifier.statuses())
	})

	t.Run("cancel landing before failure is recorded keeps cancelled", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		cancelThenFail := analyserFunc(func(context.Context, string, string) (*Report, error) {
			require.NoError(t, repo.MarkCancelled(analysis.ID))
			return nil, errors.New("provider exploded")
		})

		runner := NewAnalysisRunner(repo, cancelThenFail, NewReportExporter(), nil, nil)
		assert.Error(t, runner.RunAnalysis(context.Background(), analysis.ID))

		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
		assert.Nil(t, stored.ErrorMessage)
	})

	t.Run("cancelled before start is not reopened", func(t *testing.T) {
		analysis := newAnalysis()
		repo := newMemoryRepository(analysis)
		gen := &scriptedGenerator{}
		stale := *analysis
		require.NoError(t, repo.MarkCancelled(analysis.ID))
		staleRepo := &staleReadRepository{memoryRepository: repo, stale: &stale}

		runner := NewAnalysisRunner(staleRepo, NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), nil, nil)
		require.NoError(t, runner.RunAnalysis(context.Background(), analysis.ID))

		stored, _ := repo.FindByID(analysis.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
		assert.Zero(t, gen.calls())
	})

	t.Run("skips finished analysis", func(t *testing.T) {
		analysis := newAnalysis()
		analysis.Status = models.StatusCompleted
		gen := &scriptedGenerator{}

		runner := NewAnalysisRunner(newMemoryRepository(analysis), NewAnalyser(gen, NewPromptBuilder(0, 0), nil), NewReportExporter(), nil, nil)
		require.NoError(t, runner.RunAnalysis(context.Background(), analysis.ID))
		assert.Zero(t, gen.calls())
	})
}

type analyserFunc func(ctx context.Context, cvText, jdText string) (*Report, error)

func (f analyserFunc) Analyse(ctx context.Context, cvText, jdText string) (*Report, error) {
	return f(ctx, cvText, jdText)
}

// staleReadRepository returns a snapshot taken before a concurrent cancel.
type staleReadRepository struct {
	*memoryRepository
	stale *models.Analysis
}

func (r *staleReadRepository) FindByID(uuid.UUID) (*models.Analysis, error) {
	copied := *r.stale
	return &copied, nil
}
