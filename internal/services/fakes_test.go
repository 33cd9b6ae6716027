package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
)

// memoryRepository is an in-memory AnalysisRepository.
type memoryRepository struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]*models.Analysis
}

func newMemoryRepository(analyses ...*models.Analysis) *memoryRepository {
	repo := &memoryRepository{analyses: make(map[uuid.UUID]*models.Analysis)}
	for _, a := range analyses {
		repo.analyses[a.ID] = a
	}
	return repo
}

func (r *memoryRepository) Create(analysis *models.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[analysis.ID] = analysis
	return nil
}

func (r *memoryRepository) FindByID(id uuid.UUID) (*models.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil, repositories.ErrAnalysisNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryRepository) UpdateStatus(id uuid.UUID, status models.AnalysisStatus) error {
	return r.transition(id, activeOnly, func(a *models.Analysis) { a.Status = status })
}

func (r *memoryRepository) UpdateResult(id uuid.UUID, data *repositories.AnalysisUpdateData) error {
	return r.transition(id, processingOnly, func(a *models.Analysis) {
		a.Status = models.StatusCompleted
		a.Model = &data.Model
		a.RawResponse = &data.RawResponse
		a.Report = &data.Report
		a.CandidateName = &data.CandidateName
		a.Category = &data.Category
		a.Score = data.Score
	})
}

func (r *memoryRepository) UpdateExport(id uuid.UUID, location string, exportErr error) error {
	return r.with(id, func(a *models.Analysis) {
		if exportErr != nil {
			msg := exportErr.Error()
			a.ExportError = &msg
			return
		}
		a.ExportLocation = &location
	})
}

func (r *memoryRepository) UpdateError(id uuid.UUID, errorMsg string) error {
	return r.transition(id, processingOnly, func(a *models.Analysis) {
		a.Status = models.StatusFailed
		a.ErrorMessage = &errorMsg
	})
}

func (r *memoryRepository) MarkCancelled(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok || a.Status.IsTerminal() {
		return repositories.ErrAnalysisNotFound
	}
	a.Status = models.StatusCancelled
	return nil
}

func (r *memoryRepository) FindQueued(limit int) ([]models.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Analysis
	for _, a := range r.analyses {
		if a.Status == models.StatusQueued && len(out) < limit {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryRepository) with(id uuid.UUID, fn func(*models.Analysis)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return repositories.ErrAnalysisNotFound
	}
	fn(a)
	return nil
}

func activeOnly(s models.AnalysisStatus) bool { return !s.IsTerminal() }

func processingOnly(s models.AnalysisStatus) bool { return s == models.StatusProcessing }

func (r *memoryRepository) transition(id uuid.UUID, allowed func(models.AnalysisStatus) bool, fn func(*models.Analysis)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return repositories.ErrAnalysisNotFound
	}
	if !allowed(a.Status) {
		return repositories.ErrStatusConflict
	}
	fn(a)
	return nil
}

// scriptedGenerator replays canned results in call order.
type scriptedGenerator struct {
	mu      sync.Mutex
	results []GenerationResult
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) GenerationResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.results) == 0 {
		return GenerationResult{Failure: errors.New("unexpected call")}
	}
	next := g.results[0]
	g.results = g.results[1:]
	return next
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []models.StatusUpdate
}

func (n *recordingNotifier) Publish(update models.StatusUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, u := range n.updates {
		out = append(out, u.Status)
	}
	return out
}

type stubStandards struct {
	text string
	err  error
}

func (s stubStandards) RetrieveStandards(context.Context, string) (string, error) {
	return s.text, s.err
}
