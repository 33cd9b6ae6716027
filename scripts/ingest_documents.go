package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/config"
	"alfredoptarigan/swiss-cv-analyser/internal/services"
)

func main() {
	cfg := config.Load()
	config.InitLogger(cfg)
	log.Info().Msg("🚀 Starting reference document ingestion...")

	if cfg.Qdrant.URL == "" {
		log.Fatal().Msg("❌ QDRANT_URL is required for ingestion")
	}

	geminiService, err := services.NewGeminiService(services.GeminiOptions{
		APIKey:         cfg.Gemini.APIKey,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize Gemini")
	}

	referenceIndex, err := services.NewReferenceIndex(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize Qdrant")
	}

	ctx := context.Background()
	if err := referenceIndex.EnsureCollection(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize collection")
	}

	parser := services.NewDocumentParser()
	chunker := services.NewTextChunker()

	documents := []struct {
		Key     string
		Path    string
		DocType string
		Name    string
	}{
		{
			Key:     "swiss_cv_standards",
			Path:    "./reference_docs/swiss_cv_standards.pdf",
			DocType: services.DocTypeSwissStandard,
			Name:    "Swiss CV Standards",
		},
		{
			Key:     "swiss_cv_rubric",
			Path:    "./reference_docs/swiss_cv_rubric.pdf",
			DocType: services.DocTypeSwissStandard,
			Name:    "Swiss Recruiter Scoring Rubric",
		},
		{
			Key:     "industry_job_descriptions",
			Path:    "./reference_docs/industry_job_descriptions.pdf",
			DocType: services.DocTypeIndustryJD,
			Name:    "Industry Job Description Baselines",
		},
	}

	successCount := 0
	failCount := 0

	for _, doc := range documents {
		logger := log.With().Str("document", doc.Name).Str("doc_type", doc.DocType).Logger()
		logger.Info().Str("path", doc.Path).Msg("📄 Processing")

		if _, err := os.Stat(doc.Path); errors.Is(err, os.ErrNotExist) {
			logger.Warn().Msg("⚠️ File not found, skipping")
			failCount++
			continue
		}

		content, err := parser.ExtractTextFromFile(doc.Path)
		if err != nil {
			logger.Error().Err(err).Msg("❌ Failed to extract text")
			failCount++
			continue
		}

		chunks := chunker.ChunkText(content, 1000, 200)
		logger.Info().Int("characters", len(content)).Int("chunks", len(chunks)).Msg("✂️ Chunked text")

		passages := make([]services.Passage, 0, len(chunks))
		for i, chunk := range chunks {
			embedding, err := geminiService.GenerateEmbedding(ctx, chunk)
			if err != nil {
				logger.Error().Err(err).Int("chunk", i+1).Msg("❌ Failed to generate embedding")
				continue
			}
			passages = append(passages, services.Passage{Text: chunk, Embedding: embedding})

			if len(passages)%5 == 0 || i == len(chunks)-1 {
				logger.Info().Int("embedded", len(passages)).Int("total", len(chunks)).Msg("📊 Progress")
			}
		}

		if len(passages) == 0 {
			logger.Error().Msg("❌ No chunks embedded")
			failCount++
			continue
		}

		// Re-ingesting replaces the previous passages of the same document
		if err := referenceIndex.ReplaceDocument(ctx, doc.Key, doc.DocType, passages); err != nil {
			logger.Error().Err(err).Msg("❌ Failed to store passages")
			failCount++
			continue
		}

		logger.Info().Msg("✅ Successfully ingested")
		successCount++
	}

	log.Info().Msg(strings.Repeat("=", 60))
	log.Info().Int("successful", successCount).Int("failed", failCount).Msg("📊 Ingestion summary")

	if failCount > 0 {
		log.Warn().Msg("⚠️ Some documents failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Info().Msg("✅ All documents ingested successfully!")
}
