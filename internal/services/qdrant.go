package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

const (
	DocTypeSwissStandard = "swiss_standard"
	DocTypeIndustryJD    = "industry_jd"
)

// EmbeddingDimensions matches text-embedding-004.
const EmbeddingDimensions = 768

const defaultQdrantGRPCPort = 6334

// ReferenceIndex holds the embedded passages of the Swiss CV standards and
// industry job descriptions.
type ReferenceIndex interface {
	EnsureCollection(ctx context.Context) error
	ReplaceDocument(ctx context.Context, docID, docType string, passages []Passage) error
	Search(ctx context.Context, queryEmbedding []float32, docType string, limit int) ([]SearchResult, error)
}

// Passage is one embedded chunk of a reference document.
type Passage struct {
	Text      string
	Embedding []float32
}

type SearchResult struct {
	DocID      string
	DocType    string
	ChunkIndex int
	Score      float32
	Text       string
}

type qdrantIndex struct {
	client     *qdrant.Client
	collection string
}

func NewReferenceIndex(rawURL, apiKey, collection string) (ReferenceIndex, error) {
	cfg, err := qdrantConfig(rawURL, apiKey)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantIndex{client: client, collection: collection}, nil
}

// qdrantConfig turns QDRANT_URL into gRPC settings. https enables TLS and a
// missing port means the default gRPC port.
func qdrantConfig(rawURL, apiKey string) (*qdrant.Config, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid Qdrant URL %q: missing host", rawURL)
	}

	port := defaultQdrantGRPCPort
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
	}

	return &qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: parsed.Scheme == "https",
	}, nil
}

func (q *qdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		log.Debug().Str("collection", q.collection).Msg("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     EmbeddingDimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", q.collection).Msg("✅ Reference collection created")
	return nil
}

// ReplaceDocument drops every stored passage of docID and writes the new
// ones in a single batch.
func (q *qdrantIndex) ReplaceDocument(ctx context.Context, docID, docType string, passages []Passage) error {
	points, err := buildPoints(docID, docType, passages)
	if err != nil {
		return err
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(docID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete previous passages of %s: %w", docID, err)
	}

	if len(points) == 0 {
		return nil
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert passages of %s: %w", docID, err)
	}

	return nil
}

func (q *qdrantIndex) Search(ctx context.Context, queryEmbedding []float32, docType string, limit int) ([]SearchResult, error) {
	var filter *qdrant.Filter
	if docType != "" {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("doc_type", docType)}}
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search references: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, toSearchResult(point.GetPayload(), point.GetScore()))
	}
	return results, nil
}

// buildPoints derives point IDs from docID and chunk position, so
// re-ingesting the same document overwrites instead of duplicating.
func buildPoints(docID, docType string, passages []Passage) ([]*qdrant.PointStruct, error) {
	points := make([]*qdrant.PointStruct, 0, len(passages))
	for i, passage := range passages {
		if len(passage.Embedding) != EmbeddingDimensions {
			return nil, fmt.Errorf("passage %d of %s has %d dimensions, want %d", i, docID, len(passage.Embedding), EmbeddingDimensions)
		}

		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", docID, i)))
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID.String()),
			Vectors: qdrant.NewVectors(passage.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":      docID,
				"doc_type":    docType,
				"chunk_index": i,
				"text":        passage.Text,
			}),
		})
	}
	return points, nil
}

func documentFilter(docID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("doc_id", docID)}}
}

func toSearchResult(payload map[string]*qdrant.Value, score float32) SearchResult {
	result := SearchResult{
		DocID:   payload["doc_id"].GetStringValue(),
		DocType: payload["doc_type"].GetStringValue(),
		Text:    payload["text"].GetStringValue(),
		Score:   score,
	}
	if v, ok := payload["chunk_index"]; ok {
		result.ChunkIndex = int(v.GetIntegerValue())
	}
	return result
}
