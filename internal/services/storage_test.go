package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalReportStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	store, err := NewLocalReportStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	name := ReportFileName("42")
	assert.Equal(t, "cv_analysis_42.docx", name)

	location, err := store.Save(ctx, name, []byte("docx bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), location)

	data, err := store.Open(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "docx bytes", string(data))

	_, err = store.Open(ctx, ReportFileName("missing"))
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestLocalReportStore_RejectsPathNames(t *testing.T) {
	store, err := NewLocalReportStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.docx", "sub/report.docx", `sub\report.docx`} {
		_, err := store.Save(context.Background(), name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestS3Options_Region(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want string
	}{
		{"explicit region wins", S3Options{Region: "eu-central-2", Endpoint: "https://acc.r2.cloudflarestorage.com"}, "eu-central-2"},
		{"compatible endpoint without region", S3Options{Endpoint: "https://acc.r2.cloudflarestorage.com"}, "auto"},
		{"plain aws falls back to sdk chain", S3Options{Bucket: "reports"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.region())
		})
	}
}
