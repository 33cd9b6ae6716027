package handlers

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
	"alfredoptarigan/swiss-cv-analyser/internal/services"
)

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type ResultHandler struct {
	repo  repositories.AnalysisRepository
	store services.ReportStore
}

func NewResultHandler(repo repositories.AnalysisRepository, store services.ReportStore) *ResultHandler {
	return &ResultHandler{
		repo:  repo,
		store: store,
	}
}

// HandleGetResult handles GET /analyses/:id
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	analysis, err := h.findAnalysis(c)
	if err != nil {
		return err
	}

	response := models.ResultResponse{
		ID:     analysis.ID.String(),
		Status: string(analysis.Status),
	}

	if analysis.Status == models.StatusCompleted {
		data := &models.ReportData{
			Model:         deref(analysis.Model),
			CandidateName: deref(analysis.CandidateName),
			Category:      deref(analysis.Category),
			Score:         analysis.Score,
			Markdown:      deref(analysis.Report),
			ExportError:   deref(analysis.ExportError),
		}

		html, err := services.RenderHTML(data.Markdown)
		if err != nil {
			log.Warn().Err(err).Str("analysis_id", analysis.ID.String()).Msg("⚠️ Failed to render preview")
		}
		data.HTML = html

		if analysis.ExportLocation != nil {
			data.ExportURL = fmt.Sprintf("/api/v1/analyses/%s/export", analysis.ID)
		}

		response.Result = data
	}

	if analysis.Status == models.StatusFailed && analysis.ErrorMessage != nil {
		response.ErrorMessage = analysis.ErrorMessage
	}

	return c.JSON(response)
}

// HandleExport handles GET /analyses/:id/export
func (h *ResultHandler) HandleExport(c *fiber.Ctx) error {
	analysis, err := h.findAnalysis(c)
	if err != nil {
		return err
	}

	if analysis.Status != models.StatusCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Analysis is not completed",
			"status": analysis.Status,
		})
	}

	if analysis.ExportLocation == nil {
		message := "Report export is not available"
		if analysis.ExportError != nil {
			message = fmt.Sprintf("Report export failed: %s", *analysis.ExportError)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
	}

	data, err := h.store.Open(c.UserContext(), services.ReportFileName(analysis.ID.String()))
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Report file not found"})
		}
		return err
	}

	c.Attachment(downloadName(analysis))
	c.Set(fiber.HeaderContentType, services.DocxContentType)
	return c.Send(data)
}

func (h *ResultHandler) findAnalysis(c *fiber.Ctx) (*models.Analysis, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid analysis ID format")
	}

	analysis, err := h.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrAnalysisNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Analysis not found")
		}
		return nil, err
	}

	return analysis, nil
}

func downloadName(analysis *models.Analysis) string {
	name := unsafeFilenameRe.ReplaceAllString(deref(analysis.CandidateName), "_")
	if name == "" || name == "_" {
		name = analysis.ID.String()
	}
	return fmt.Sprintf("CV_Analysis_%s.docx", name)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
