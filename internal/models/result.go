package models

// AnalyseRequest carries the non-file fields of POST /analyses.
type AnalyseRequest struct {
	JobDescriptionText string `form:"job_description_text" validate:"max=100000"`
}

type AnalyseResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ResultResponse struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Result       *ReportData `json:"result,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}

type ReportData struct {
	Model         string `json:"model"`
	CandidateName string `json:"candidate_name"`
	Category      string `json:"category"`
	Score         *int   `json:"score,omitempty"`
	Markdown      string `json:"markdown"`
	HTML          string `json:"html"`
	ExportURL     string `json:"export_url,omitempty"`
	ExportError   string `json:"export_error,omitempty"`
}

// StatusUpdate is published to the message broker whenever an analysis
// changes state.
type StatusUpdate struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Score    *int   `json:"score,omitempty"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error,omitempty"`
}
