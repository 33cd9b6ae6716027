package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCatalog struct {
	models []string
	err    error
	calls  int
}

func (c *stubCatalog) ListGenerationModels(context.Context) ([]string, error) {
	c.calls++
	return c.models, c.err
}

func TestSelectModel(t *testing.T) {
	candidates := []string{"gemini-2.5-flash", "gemini-2.0-flash"}

	model, ok := SelectModel(candidates, []string{"models/gemini-2.0-flash", "models/gemini-2.5-flash"})
	assert.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", model)

	model, ok = SelectModel(candidates, []string{"models/gemini-pro"})
	assert.True(t, ok)
	assert.Equal(t, "gemini-pro", model)

	_, ok = SelectModel(candidates, nil)
	assert.False(t, ok)
}

func TestModelResolver_Resolve(t *testing.T) {
	t.Run("caches successful discovery", func(t *testing.T) {
		catalog := &stubCatalog{models: []string{"models/gemini-2.0-flash"}}
		resolver := NewModelResolver(catalog, []string{"gemini-2.5-flash", "gemini-2.0-flash"}, "gemini-2.5-flash")

		assert.Equal(t, "gemini-2.0-flash", resolver.Resolve(context.Background()))
		assert.Equal(t, "gemini-2.0-flash", resolver.Resolve(context.Background()))
		assert.Equal(t, 1, catalog.calls)
	})

	t.Run("falls back to default and retries later", func(t *testing.T) {
		catalog := &stubCatalog{err: errors.New("network down")}
		resolver := NewModelResolver(catalog, []string{"gemini-2.5-flash"}, "models/gemini-1.5-flash")

		assert.Equal(t, "gemini-1.5-flash", resolver.Resolve(context.Background()))

		catalog.err = nil
		catalog.models = []string{"models/gemini-2.5-flash"}
		assert.Equal(t, "gemini-2.5-flash", resolver.Resolve(context.Background()))
		assert.Equal(t, 2, catalog.calls)
	})

	t.Run("empty catalog uses default", func(t *testing.T) {
		resolver := NewModelResolver(&stubCatalog{}, []string{"gemini-2.5-flash"}, "gemini-2.5-flash")
		assert.Equal(t, "gemini-2.5-flash", resolver.Resolve(context.Background()))
	})

	t.Run("reset forces rediscovery", func(t *testing.T) {
		catalog := &stubCatalog{models: []string{"gemini-2.5-flash"}}
		resolver := NewModelResolver(catalog, []string{"gemini-2.5-flash"}, "gemini-2.5-flash")

		resolver.Resolve(context.Background())
		resolver.Reset()
		resolver.Resolve(context.Background())
		assert.Equal(t, 2, catalog.calls)
	})
}
