package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ModelResolver picks the model handle used for generation. Providers retire
// model names, so the configured candidates are checked against what the
// provider currently serves.
type ModelResolver struct {
	catalog      ModelCatalog
	candidates   []string
	defaultModel string

	mu       sync.Mutex
	resolved string
}

func NewModelResolver(catalog ModelCatalog, candidates []string, defaultModel string) *ModelResolver {
	normalized := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = NormalizeModelName(c); c != "" {
			normalized = append(normalized, c)
		}
	}

	return &ModelResolver{
		catalog:      catalog,
		candidates:   normalized,
		defaultModel: NormalizeModelName(defaultModel),
	}
}

// Resolve never fails. A successful discovery is cached for the life of the
// resolver; a failed one falls back to the default and is retried next time.
func (r *ModelResolver) Resolve(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != "" {
		return r.resolved
	}

	available, err := r.catalog.ListGenerationModels(ctx)
	if err != nil {
		log.Warn().Err(err).Str("model", r.defaultModel).Msg("⚠️ Model discovery failed, using default model")
		return r.defaultModel
	}

	model, ok := SelectModel(r.candidates, available)
	if !ok {
		log.Warn().Str("model", r.defaultModel).Msg("⚠️ Provider reported no generation models, using default model")
		return r.defaultModel
	}

	log.Info().Str("model", model).Msg("✅ Model resolved")
	r.resolved = model
	return model
}

// Reset drops the cached handle, e.g. after the provider rejected it.
func (r *ModelResolver) Reset() {
	r.mu.Lock()
	r.resolved = ""
	r.mu.Unlock()
}

// SelectModel returns the first candidate present in available, otherwise the
// first available model. ok is false only when available is empty.
func SelectModel(candidates, available []string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}

	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[NormalizeModelName(name)] = struct{}{}
	}

	for _, candidate := range candidates {
		if _, ok := set[NormalizeModelName(candidate)]; ok {
			return NormalizeModelName(candidate), true
		}
	}

	return NormalizeModelName(available[0]), true
}
