package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentParser_ExtractText(t *testing.T) {
	parser := NewDocumentParser()

	t.Run("plain text is cleaned", func(t *testing.T) {
		text, err := parser.ExtractText(MimeText, []byte("  Anna Muster  \n\n\n  QA Specialist, GMP \n"))
		require.NoError(t, err)
		assert.Equal(t, "Anna Muster\nQA Specialist, GMP", text)
	})

	t.Run("whitespace only has no text", func(t *testing.T) {
		_, err := parser.ExtractText(MimeText, []byte(" \n\t\n "))
		assert.ErrorIs(t, err, ErrNoText)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := parser.ExtractText("image/png", []byte{0x89, 'P', 'N', 'G'})
		assert.ErrorIs(t, err, ErrUnsupportedDocument)
	})

	t.Run("docx", func(t *testing.T) {
		data, err := NewReportExporter().Export(Report{Name: "Jo & Co", Body: "Fluent German"}, ExportMeta{Model: "m"})
		require.NoError(t, err)

		text, err := parser.ExtractText(MimeDOCX, data)
		require.NoError(t, err)
		assert.Contains(t, text, "Candidate: Jo & Co")
		assert.Contains(t, text, "Fluent German")
		assert.NotContains(t, text, "<w:")
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		_, err := parser.ExtractText(MimePDF, []byte("%PDF-1.4 not really"))
		assert.Error(t, err)
	})
}

func TestDocumentParser_ExtractTextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("5 years QA experience"), 0644))

	text, err := NewDocumentParser().ExtractTextFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "5 years QA experience", text)

	_, err = NewDocumentParser().ExtractTextFromFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestDetectMime(t *testing.T) {
	assert.Equal(t, MimePDF, DetectMime("cv.PDF", nil))
	assert.Equal(t, MimeDOCX, DetectMime("cv.docx", nil))
	assert.Equal(t, MimeText, DetectMime("notes.md", nil))
	assert.Equal(t, MimePDF, DetectMime("upload", []byte("%PDF-1.7\n")))
	assert.Equal(t, MimeText, DetectMime("upload", []byte("hello world")))
}

func TestReadAllLimited(t *testing.T) {
	data, err := ReadAllLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = ReadAllLimited(strings.NewReader("123456"), 5)
	assert.Error(t, err)
}
