package models

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	StatusQueued     AnalysisStatus = "queued"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
	StatusCancelled  AnalysisStatus = "cancelled"
)

// IsTerminal reports whether no further work will happen for the status.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Analysis struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Status         AnalysisStatus `gorm:"not null;default:'queued';index" json:"status"`
	CVFilename     string         `gorm:"type:text" json:"cv_filename"`
	CVText         string         `gorm:"type:text;not null" json:"-"`
	JDFilename     string         `gorm:"type:text" json:"jd_filename,omitempty"`
	JDText         string         `gorm:"type:text" json:"-"`
	Model          *string        `gorm:"type:text" json:"model,omitempty"`
	RawResponse    *string        `gorm:"type:text" json:"-"`
	Report         *string        `gorm:"type:text" json:"report,omitempty"`
	CandidateName  *string        `gorm:"type:text" json:"candidate_name,omitempty"`
	Category       *string        `gorm:"type:text" json:"category,omitempty"`
	Score          *int           `json:"score,omitempty"`
	ExportLocation *string        `gorm:"type:text" json:"export_location,omitempty"`
	ExportError    *string        `gorm:"type:text" json:"export_error,omitempty"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Analysis) TableName() string {
	return "analyses"
}
