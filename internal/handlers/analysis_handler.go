package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/models"
	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
	"alfredoptarigan/swiss-cv-analyser/internal/services"
)

type AnalysisHandler struct {
	repo        repositories.AnalysisRepository
	parser      services.DocumentParser
	worker      services.Worker
	validate    *validator.Validate
	maxFileSize int64
}

func NewAnalysisHandler(
	repo repositories.AnalysisRepository,
	parser services.DocumentParser,
	worker services.Worker,
	maxFileSize int64,
) *AnalysisHandler {
	return &AnalysisHandler{
		repo:        repo,
		parser:      parser,
		worker:      worker,
		validate:    validator.New(),
		maxFileSize: maxFileSize,
	}
}

// HandleCreate handles POST /analyses. Input problems are reported before
// anything is queued, so the provider is never called for them.
func (h *AnalysisHandler) HandleCreate(c *fiber.Ctx) error {
	var req models.AnalyseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
	}

	cvFile, err := c.FormFile("cv")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cv file is required",
		})
	}

	cvText, status, err := h.readDocument(cvFile, "CV")
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	analysis := &models.Analysis{
		ID:         uuid.New(),
		Status:     models.StatusQueued,
		CVFilename: cvFile.Filename,
		CVText:     cvText,
		JDText:     strings.TrimSpace(req.JobDescriptionText),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if jdFile, err := c.FormFile("job_description"); err == nil {
		jdText, status, err := h.readDocument(jdFile, "Job description")
		if err != nil {
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		analysis.JDFilename = jdFile.Filename
		analysis.JDText = jdText
	}

	if err := h.repo.Create(analysis); err != nil {
		log.Error().Err(err).Msg("❌ Failed to create analysis")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create analysis job",
		})
	}

	h.worker.EnqueueJob(analysis.ID)

	return c.Status(fiber.StatusAccepted).JSON(models.AnalyseResponse{
		ID:     analysis.ID.String(),
		Status: string(models.StatusQueued),
	})
}

// HandleCancel handles DELETE /analyses/:id
func (h *AnalysisHandler) HandleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid analysis ID format",
		})
	}

	analysis, err := h.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrAnalysisNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Analysis not found",
			})
		}
		return err
	}

	if analysis.Status.IsTerminal() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fmt.Sprintf("Analysis already %s", analysis.Status),
		})
	}

	if err := h.repo.MarkCancelled(id); err != nil {
		if errors.Is(err, repositories.ErrAnalysisNotFound) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Analysis already finished",
			})
		}
		return err
	}
	h.worker.Cancel(id)

	return c.JSON(models.AnalyseResponse{
		ID:     id.String(),
		Status: string(models.StatusCancelled),
	})
}

func (h *AnalysisHandler) readDocument(file *multipart.FileHeader, label string) (string, int, error) {
	if file.Size > h.maxFileSize {
		return "", fiber.StatusRequestEntityTooLarge, fmt.Errorf("%s file too large. Max size: %d bytes", label, h.maxFileSize)
	}

	src, err := file.Open()
	if err != nil {
		return "", fiber.StatusBadRequest, fmt.Errorf("failed to open %s file", label)
	}
	defer src.Close()

	data, err := services.ReadAllLimited(src, h.maxFileSize)
	if err != nil {
		return "", fiber.StatusRequestEntityTooLarge, fmt.Errorf("%s file: %v", label, err)
	}

	text, err := h.parser.ExtractText(services.DetectMime(file.Filename, data), data)
	switch {
	case err == nil:
		return text, 0, nil
	case errors.Is(err, services.ErrNoText):
		return "", fiber.StatusUnprocessableEntity, fmt.Errorf("%s contains no extractable text (is it a scanned image?)", label)
	case errors.Is(err, services.ErrUnsupportedDocument):
		return "", fiber.StatusUnsupportedMediaType, fmt.Errorf("%s must be a PDF, DOCX or text file", label)
	default:
		return "", fiber.StatusBadRequest, fmt.Errorf("failed to read %s: %v", label, err)
	}
}
