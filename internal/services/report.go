package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	NameStartMarker = "NAME_START:"
	NameEndMarker   = "NAME_END"
	CategoryMarker  = "CATEGORY:"
)

const (
	CategoryReady   = "READY"
	CategoryImprove = "IMPROVE"
	CategoryMajor   = "MAJOR"
)

var (
	nameRe          = regexp.MustCompile(`(?is)NAME_START:?(.{0,200}?)NAME_END`)
	categoryRe      = regexp.MustCompile(`(?i)CATEGORY:?[\s*_\[]*(READY|IMPROVE|MAJOR)\b`)
	categoryLineRe  = regexp.MustCompile(`(?im)^[^\n]*CATEGORY:?[\s*_\[]*(READY|IMPROVE|MAJOR)\b[^\n]*$`)
	metadataLineRe  = regexp.MustCompile(`(?im)^[ \t*_#]*REQUIRED METADATA:?[ \t*_]*$`)
	strayMarkerRe   = regexp.MustCompile(`(?i)NAME_START:?|NAME_END`)
	scoreRe         = regexp.MustCompile(`\b(\d{1,3})\s*/\s*100\b`)
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// Report is the post-processed model answer.
type Report struct {
	Model    string
	Name     string
	Category string
	Score    *int
	Body     string
	Raw      string
}

// ParseReport pulls the metadata out of a raw response and cleans the body.
func ParseReport(raw string) Report {
	report := Report{
		Raw:  raw,
		Body: CleanBody(raw),
	}

	if m := nameRe.FindStringSubmatch(raw); m != nil {
		report.Name = cleanName(m[1])
	}

	if m := categoryRe.FindStringSubmatch(raw); m != nil {
		report.Category = strings.ToUpper(m[1])
	}

	report.Score = ExtractScore(raw)

	return report
}

// ExtractScore returns the first "N/100" value between 0 and 100.
func ExtractScore(text string) *int {
	for _, m := range scoreRe.FindAllStringSubmatch(text, -1) {
		value, err := strconv.Atoi(m[1])
		if err == nil && value >= 0 && value <= 100 {
			return &value
		}
	}
	return nil
}

// CleanBody strips metadata markers and stray bold markup. It is idempotent.
func CleanBody(text string) string {
	for i := 0; i < 5; i++ {
		next := cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func cleanOnce(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "**", "")
	text = nameRe.ReplaceAllString(text, "")
	text = strayMarkerRe.ReplaceAllString(text, "")
	text = categoryLineRe.ReplaceAllString(text, "")
	text = metadataLineRe.ReplaceAllString(text, "")
	text = trailingSpaceRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func cleanName(name string) string {
	name = strings.NewReplacer("*", "", "[", "", "]", "", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML renders the report body for the inline preview. Raw HTML in the
// model output is not passed through.
func RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
