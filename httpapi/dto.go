package httpapi

import (
	"time"

	"refinery-reports/reports"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	ID          uint       `json:"id"`
	UserID      string     `json:"user_id"`
	Year        string     `json:"year"`
	Month       *string    `json:"month"`
	FacilityID  *string    `json:"facility_id"`
	FileCount   int        `json:"file_count"`
	ErrorCount  int        `json:"error_count"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func newStatusResponse(v reports.DownloadStatusView) statusResponse {
	r := v.Record
	return statusResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		Year:        r.Year,
		Month:       r.Month,
		FacilityID:  r.FacilityID,
		FileCount:   r.FileCount,
		ErrorCount:  r.ErrorCount,
		Status:      string(r.Status),
		Progress:    v.Progress,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

type scraperRequest struct {
	Year       string `json:"year"`
	Month      string `json:"month"`
	FacilityID string `json:"facilityId"`
	UserID     string `json:"userId"`
}

type scraperResponse struct {
	Success    bool     `json:"success"`
	FileCount  int      `json:"fileCount"`
	ErrorCount int      `json:"errorCount"`
	Errors     []string `json:"errors"`
	DownloadID uint     `json:"downloadId"`
}

type errorLogRequest struct {
	DownloadID   *uint  `json:"download_id"`
	ErrorMessage string `json:"error_message"`
	StackTrace   string `json:"stack_trace"`
	BrowserInfo  string `json:"browser_info"`
	PageURL      string `json:"page_url"`
	UserID       string `json:"user_id"`
}

type createdResponse struct {
	ID      uint `json:"id"`
	Success bool `json:"success"`
}

type errorLogResponse struct {
	ID           uint      `json:"id"`
	DownloadID   *uint     `json:"download_id"`
	ErrorMessage string    `json:"error_message"`
	StackTrace   string    `json:"stack_trace"`
	BrowserInfo  string    `json:"browser_info"`
	PageURL      string    `json:"page_url"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func newErrorLogResponse(e reports.ErrorLogEntry) errorLogResponse {
	return errorLogResponse{
		ID:           e.ID,
		DownloadID:   e.DownloadID,
		ErrorMessage: e.ErrorMessage,
		StackTrace:   e.StackTrace,
		BrowserInfo:  e.BrowserInfo,
		PageURL:      e.PageURL,
		UserID:       e.UserID,
		CreatedAt:    e.CreatedAt,
	}
}

type patternRequest struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type patternResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Pattern     string    `json:"pattern"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newPatternResponse(p reports.RegexPattern) patternResponse {
	return patternResponse{
		ID:          p.ID,
		Name:        p.Name,
		Pattern:     p.Pattern,
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type patternTestRequest struct {
	Pattern  string `json:"pattern"`
	Filename string `json:"filename"`
}

type patternTestResponse struct {
	Matched   bool              `json:"matched"`
	FullMatch string            `json:"fullMatch,omitempty"`
	Groups    map[string]string `json:"groups"`
}

type filenameParseRequest struct {
	Filename string `json:"filename"`
}

type filenameParseResponse struct {
	Matched  bool   `json:"matched"`
	Year     string `json:"year,omitempty"`
	Month    string `json:"month,omitempty"`
	Facility string `json:"facility,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

type emailSettingsBody struct {
	NotificationEmail string `json:"notification_email"`
	SMTPHost          string `json:"smtp_host"`
	SMTPPort          string `json:"smtp_port"`
	SMTPUser          string `json:"smtp_user"`
	SMTPPass          string `json:"smtp_pass"`
	SendOnError       bool   `json:"send_on_error"`
	SendOnCompletion  bool   `json:"send_on_completion"`
}

type settingsEnvelope struct {
	Settings *emailSettingsBody `json:"settings"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type yearsResponse struct {
	Years []string `json:"years"`
}
