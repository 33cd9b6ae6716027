package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IndustryStandardJD stands in for the job description when none was given
// and no reference standards could be retrieved.
const IndustryStandardJD = "General Life Sciences Industry Standard"

type PromptBuilder struct {
	cvBudget int
	jdBudget int
}

func NewPromptBuilder(cvBudget, jdBudget int) *PromptBuilder {
	if cvBudget <= 0 {
		cvBudget = 8000
	}
	if jdBudget <= 0 {
		jdBudget = 8000
	}
	return &PromptBuilder{cvBudget: cvBudget, jdBudget: jdBudget}
}

// BuildCVSummaryPrompt asks for the key facts of the CV.
func (pb *PromptBuilder) BuildCVSummaryPrompt(cvText string) string {
	return fmt.Sprintf(
		"List key facts: Name, Total years exp, Education, Top 5 Tech Skills, Language levels (GER/ENG/FR), Nationality/Permit: %s",
		TruncateRunes(cvText, pb.cvBudget),
	)
}

// BuildJDSummaryPrompt asks for the hard requirements of the job description.
func (pb *PromptBuilder) BuildJDSummaryPrompt(jdText string) string {
	return fmt.Sprintf(
		"List Top 5 Hard Skills, Minimum Education, and 3 Primary KPIs: %s",
		TruncateRunes(jdText, pb.jdBudget),
	)
}

// BuildFinalPrompt creates the scored evaluation prompt. The rubric and the
// metadata markers keep the output consistent between runs.
func (pb *PromptBuilder) BuildFinalPrompt(cvSummary, jdSummary string) string {
	return fmt.Sprintf(`You are a Senior Swiss Life Sciences Recruiter. Evaluate the CV against the JD.
You must be highly consistent. Use the following SCORING RUBRIC to calculate the Overall Fit:
- Technical Match (40%%): How many of the 5 hard skills are present?
- Experience Level (20%%): Does the seniority match?
- Swiss Compliance (20%%): Are permit, language, and photo standard?
- Impact/KPIs (20%%): Are there numbers and results?

REQUIRED METADATA:
%s [Candidate Full Name] %s
%s [READY, IMPROVE, or MAJOR]

### 1. CV PERFORMANCE SCORECARD
Overall Job-Fit Score: [X]/100 (Explain the math: e.g., Technical 35/40 + Swiss 10/20...)

### 2. SWISS COMPLIANCE & FORMATTING
The Fact: 85%% of Swiss HR expect clear mention of Nationality/Work Permit status.
Audit: [Compare CV against Swiss standards for Photo, Permit, and Personal Data]

### 3. TECHNICAL & KEYWORD ALIGNMENT
The Fact: ATS rejection rates in Life Sciences hit 75%% if mandatory keywords are missing.
Audit: [Direct comparison of CV skills vs JD requirements]

### 4. EVIDENCE OF IMPACT (KPIs)
The Fact: Quantitative metrics increase interview conversion by 40%%.
Audit: [Analysis of bullet points, suggest specific metrics]

### 5. PRIORITY ACTION PLAN
1. [Task]
2. [Task]

CV DATA: %s
JD DATA: %s`,
		NameStartMarker, NameEndMarker, CategoryMarker,
		strings.TrimSpace(cvSummary), strings.TrimSpace(jdSummary))
}

// TruncateRunes cuts s to at most limit characters without splitting a
// multi-byte character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return string(runes[:limit])
}

// Helper to clean and format context from RAG results
func FormatRAGContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var parts []string
	for i, result := range results {
		parts = append(parts, fmt.Sprintf("--- Reference %d (Score: %.2f) ---\n%s",
			i+1, result.Score, strings.TrimSpace(result.Text)))
	}

	return strings.Join(parts, "\n\n")
}
