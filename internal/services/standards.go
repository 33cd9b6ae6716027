package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// queryCharBudget keeps the query inside the embedding model's input limit.
const queryCharBudget = 2000

// StandardsRetriever supplies reference hiring standards to compare a CV
// against when no job description was provided.
type StandardsRetriever interface {
	RetrieveStandards(ctx context.Context, cvText string) (string, error)
}

type standardsRetriever struct {
	embedder Embedder
	index    ReferenceIndex
	limit    int
}

func NewStandardsRetriever(embedder Embedder, index ReferenceIndex) StandardsRetriever {
	return &standardsRetriever{
		embedder: embedder,
		index:    index,
		limit:    3,
	}
}

// RetrieveStandards returns formatted reference passages, or "" when the
// knowledge base has nothing relevant.
func (r *standardsRetriever) RetrieveStandards(ctx context.Context, cvText string) (string, error) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, TruncateRunes(cvText, queryCharBudget))
	if err != nil {
		return "", fmt.Errorf("failed to generate query embedding: %w", err)
	}

	var all []SearchResult
	for _, docType := range []string{DocTypeIndustryJD, DocTypeSwissStandard} {
		results, err := r.index.Search(ctx, embedding, docType, r.limit)
		if err != nil {
			log.Warn().Err(err).Str("doc_type", docType).Msg("⚠️ Failed to search reference standards")
			continue
		}
		all = append(all, results...)
	}

	return FormatRAGContext(all), nil
}
