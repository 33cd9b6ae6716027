package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/nguyenthenguyen/docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportExporter_Export(t *testing.T) {
	score := 72
	report := Report{
		Name:     "Anna Müller",
		Category: CategoryImprove,
		Score:    &score,
		Body:     "### 1. CV PERFORMANCE SCORECARD\nOverall Job-Fit Score: 72/100\n\n---\n- Permit <B> & languages\n* German C1",
	}

	data, err := NewReportExporter().Export(report, ExportMeta{
		Model:       "gemini-2.5-flash",
		GeneratedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer doc.Close()

	content := doc.Editable().GetContent()
	assert.NotContains(t, content, "{{")
	assert.Contains(t, content, "Candidate: Anna Müller")
	assert.Contains(t, content, "Category: IMPROVE")
	assert.Contains(t, content, "Overall Job-Fit Score: 72/100")
	assert.Contains(t, content, "Model: gemini-2.5-flash | Generated: 14.03.2025 09:30")
	assert.Contains(t, content, "<w:b/><w:sz w:val=\"26\"/></w:rPr><w:t xml:space=\"preserve\">1. CV PERFORMANCE SCORECARD</w:t>")
	assert.Contains(t, content, "• Permit &lt;B&gt; &amp; languages")
	assert.Contains(t, content, "• German C1")
	assert.NotContains(t, content, ">---<")
}

func TestReportExporter_ExportWithoutMetadata(t *testing.T) {
	data, err := NewReportExporter().Export(Report{Body: ""}, ExportMeta{})
	require.NoError(t, err)

	text, err := NewDocumentParser().ExtractText(MimeDOCX, data)
	require.NoError(t, err)
	assert.Contains(t, text, "Candidate: Unknown candidate")
	assert.Contains(t, text, "Overall Job-Fit Score: n/a")
}

func TestBodyParagraphs(t *testing.T) {
	out, err := bodyParagraphs("")
	require.NoError(t, err)
	assert.Equal(t, "<w:p/>", out)

	out, err = bodyParagraphs("plain line")
	require.NoError(t, err)
	assert.Equal(t, `<w:p><w:r><w:t xml:space="preserve">plain line</w:t></w:r></w:p>`, out)
}
