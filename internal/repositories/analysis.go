package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrStatusConflict means the row left the status the write expected,
	// usually because the analysis was cancelled meanwhile.
	ErrStatusConflict = errors.New("analysis status changed")
)

var activeStatuses = []models.AnalysisStatus{models.StatusQueued, models.StatusProcessing}

type AnalysisRepository interface {
	Create(analysis *models.Analysis) error
	FindByID(id uuid.UUID) (*models.Analysis, error)
	UpdateStatus(id uuid.UUID, status models.AnalysisStatus) error
	UpdateResult(id uuid.UUID, result *AnalysisUpdateData) error
	UpdateExport(id uuid.UUID, location string, exportErr error) error
	UpdateError(id uuid.UUID, errorMsg string) error
	MarkCancelled(id uuid.UUID) error
	FindQueued(limit int) ([]models.Analysis, error)
}

type AnalysisUpdateData struct {
	Model         string
	RawResponse   string
	Report        string
	CandidateName string
	Category      string
	Score         *int
}

type analysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(analysis *models.Analysis) error {
	if err := r.db.Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

func (r *analysisRepository) FindByID(id uuid.UUID) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := r.db.Where("id = ?", id).First(&analysis).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}
	return &analysis, nil
}

// UpdateStatus moves an active run between queued and processing. Runs that
// already reached a terminal status are left alone.
func (r *analysisRepository) UpdateStatus(id uuid.UUID, status models.AnalysisStatus) error {
	return r.transition(id, activeStatuses, map[string]interface{}{
		"status": status,
	})
}

func (r *analysisRepository) UpdateResult(id uuid.UUID, data *AnalysisUpdateData) error {
	updates := map[string]interface{}{
		"status":         models.StatusCompleted,
		"model":          data.Model,
		"raw_response":   data.RawResponse,
		"report":         data.Report,
		"candidate_name": data.CandidateName,
		"category":       data.Category,
		"error_message":  nil,
	}
	if data.Score != nil {
		updates["score"] = *data.Score
	}

	return r.transition(id, []models.AnalysisStatus{models.StatusProcessing}, updates)
}

func (r *analysisRepository) UpdateExport(id uuid.UUID, location string, exportErr error) error {
	updates := map[string]interface{}{}
	if exportErr != nil {
		updates["export_error"] = exportErr.Error()
	} else {
		updates["export_location"] = location
		updates["export_error"] = nil
	}

	return r.update(id, updates)
}

func (r *analysisRepository) UpdateError(id uuid.UUID, errorMsg string) error {
	return r.transition(id, []models.AnalysisStatus{models.StatusProcessing}, map[string]interface{}{
		"status":        models.StatusFailed,
		"error_message": errorMsg,
	})
}

// MarkCancelled only touches runs that have not reached a terminal status.
func (r *analysisRepository) MarkCancelled(id uuid.UUID) error {
	result := r.db.Model(&models.Analysis{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{
			"status":     models.StatusCancelled,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to cancel analysis: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}

	return nil
}

func (r *analysisRepository) FindQueued(limit int) ([]models.Analysis, error) {
	var analyses []models.Analysis
	err := r.db.
		Where("status = ?", models.StatusQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&analyses).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find queued analyses: %w", err)
	}

	return analyses, nil
}

func (r *analysisRepository) update(id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result := r.db.Model(&models.Analysis{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update analysis: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}

	return nil
}

// transition applies updates only while the row is in one of the given
// statuses.
func (r *analysisRepository) transition(id uuid.UUID, from []models.AnalysisStatus, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result := r.db.Model(&models.Analysis{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update analysis: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.Model(&models.Analysis{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check analysis: %w", err)
	}
	if count == 0 {
		return ErrAnalysisNotFound
	}

	return ErrStatusConflict
}
