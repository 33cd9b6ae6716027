package services

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"
)

const DocxContentType = MimeDOCX

//go:embed templates/report.docx
var reportTemplate []byte

// bodyPlaceholder is the template paragraph replaced by the report body.
const bodyPlaceholder = `<w:p><w:r><w:t>{{REPORT_BODY}}</w:t></w:r></w:p>`

var (
	headingRe   = regexp.MustCompile(`^#{1,6}\s+`)
	bulletRe    = regexp.MustCompile(`^[-*+]\s+`)
	horizRuleRe = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})$`)
)

type ExportMeta struct {
	Model       string
	GeneratedAt time.Time
}

type ReportExporter interface {
	Export(report Report, meta ExportMeta) ([]byte, error)
}

type docxExporter struct {
	template []byte
}

func NewReportExporter() ReportExporter {
	return &docxExporter{template: reportTemplate}
}

// Export fills the embedded template with the report.
func (e *docxExporter) Export(report Report, meta ExportMeta) ([]byte, error) {
	tpl, err := docx.ReadDocxFromMemory(bytes.NewReader(e.template), int64(len(e.template)))
	if err != nil {
		return nil, fmt.Errorf("failed to open report template: %w", err)
	}
	defer tpl.Close()

	doc := tpl.Editable()

	name := report.Name
	if name == "" {
		name = "Unknown candidate"
	}
	category := report.Category
	if category == "" {
		category = "n/a"
	}
	score := "n/a"
	if report.Score != nil {
		score = fmt.Sprintf("%d/100", *report.Score)
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	fields := map[string]string{
		"{{CANDIDATE_NAME}}": name,
		"{{CATEGORY}}":       category,
		"{{SCORE}}":          score,
		"{{MODEL}}":          meta.Model,
		"{{GENERATED_AT}}":   meta.GeneratedAt.Format("02.01.2006 15:04"),
	}
	for placeholder, value := range fields {
		if err := doc.Replace(placeholder, value, -1); err != nil {
			return nil, fmt.Errorf("failed to fill %s: %w", placeholder, err)
		}
	}

	body, err := bodyParagraphs(report.Body)
	if err != nil {
		return nil, err
	}
	doc.ReplaceRaw(bodyPlaceholder, body, 1)

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report document: %w", err)
	}

	return buf.Bytes(), nil
}

// bodyParagraphs flattens Markdown into WordprocessingML paragraphs:
// headings become bold runs and list markers become bullets.
func bodyParagraphs(body string) (string, error) {
	var out strings.Builder

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || horizRuleRe.MatchString(line) {
			continue
		}

		bold := false
		switch {
		case headingRe.MatchString(line):
			line = headingRe.ReplaceAllString(line, "")
			bold = true
		case bulletRe.MatchString(line):
			line = "• " + bulletRe.ReplaceAllString(line, "")
		}

		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(line)); err != nil {
			return "", fmt.Errorf("failed to escape report line: %w", err)
		}

		out.WriteString("<w:p><w:r>")
		if bold {
			out.WriteString(`<w:rPr><w:b/><w:sz w:val="26"/></w:rPr>`)
		}
		out.WriteString(`<w:t xml:space="preserve">`)
		out.Write(escaped.Bytes())
		out.WriteString("</w:t></w:r></w:p>")
	}

	if out.Len() == 0 {
		return "<w:p/>", nil
	}
	return out.String(), nil
}
