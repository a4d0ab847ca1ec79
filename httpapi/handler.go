package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"refinery-reports/reports"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type Handler struct {
	service *reports.Service
	metrics *reports.Metrics
	logger  *log.Logger
	now     func() time.Time
}

func NewHandler(service *reports.Service, metrics *reports.Metrics, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, metrics: metrics, logger: logger, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/status":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handleStatus})
	case "/api/scraper":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleScrape})
	case "/api/download":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handleDownload})
	case "/api/errors":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleListErrors,
			http.MethodPost: h.handleLogError,
		})
	case "/api/regex":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleListPatterns,
			http.MethodPost: h.handleCreatePattern,
		})
	case "/api/regex/test":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleTestPattern})
	case "/api/regex/parse":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleParseFilename})
	case "/api/settings":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleGetSettings,
			http.MethodPost: h.handleSaveSettings,
		})
	case "/api/years":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handleYears})
	case "/healthz":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: handleHealth})
	case "/metrics":
		if h.metrics == nil {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		h.metrics.Handler().ServeHTTP(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request, methods map[string]http.HandlerFunc) {
	fn, ok := methods[r.Method]
	if !ok {
		allowed := make([]string, 0, len(methods))
		for m := range methods {
			allowed = append(allowed, m)
		}
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	fn(w, r)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.URL.Query().Get("downloadId"))
	if !ok {
		return
	}
	view, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Download not found")
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(*view))
}

func (h *Handler) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scraperRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Year) == "" {
		writeError(w, http.StatusBadRequest, "Year parameter is required")
		return
	}
	rec, err := h.service.RequestDownload(r.Context(), reports.DownloadRequest{
		Year:       body.Year,
		Month:      body.Month,
		FacilityID: body.FacilityID,
		UserID:     body.UserID,
	})
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, scraperResponse{
		Success:    true,
		FileCount:  rec.FileCount,
		ErrorCount: rec.ErrorCount,
		Errors:     []string{},
		DownloadID: rec.ID,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	archive, err := h.service.Archive(r.Context(), id)
	if err != nil {
		if !errors.Is(err, reports.ErrNotFound) {
			h.logger.Printf("build archive id=%d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Failed to generate download")
			return
		}
		writeError(w, http.StatusNotFound, "Download not found")
		return
	}

	etag := `"` + archive.Digest + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archive.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive.Data)
}

func (h *Handler) handleLogError(w http.ResponseWriter, r *http.Request) {
	var body errorLogRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ErrorMessage) == "" {
		writeError(w, http.StatusBadRequest, "Error message is required")
		return
	}
	entry, err := h.service.LogError(r.Context(), reports.ErrorReport{
		DownloadID:   body.DownloadID,
		ErrorMessage: body.ErrorMessage,
		StackTrace:   body.StackTrace,
		BrowserInfo:  body.BrowserInfo,
		PageURL:      body.PageURL,
		UserID:       body.UserID,
	})
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, createdResponse{ID: entry.ID, Success: true})
}

func (h *Handler) handleListErrors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reports.ErrorLogFilter{Query: q.Get("q")}
	if raw := q.Get("id"); raw != "" {
		id, ok := parseID(w, raw)
		if !ok {
			return
		}
		filter.DownloadID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}
	entries, err := h.service.ListErrors(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	out := make([]errorLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newErrorLogResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.service.ListPatterns(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	out := make([]patternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, newPatternResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	var body patternRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Pattern) == "" {
		writeError(w, http.StatusBadRequest, "Name and pattern are required")
		return
	}
	p, err := h.service.CreatePattern(r.Context(), reports.NewPattern{
		Name:        body.Name,
		Pattern:     body.Pattern,
		Description: body.Description,
		IsActive:    body.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, createdResponse{ID: p.ID, Success: true})
}

func (h *Handler) handleTestPattern(w http.ResponseWriter, r *http.Request) {
	var body patternTestRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Pattern) == "" {
		writeError(w, http.StatusBadRequest, "Pattern is required")
		return
	}
	m, err := h.service.TestPattern(body.Pattern, body.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid regex pattern")
		return
	}
	writeJSON(w, http.StatusOK, patternTestResponse{Matched: m.Matched, FullMatch: m.FullMatch, Groups: m.Groups})
}

func (h *Handler) handleParseFilename(w http.ResponseWriter, r *http.Request) {
	var body filenameParseRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Filename) == "" {
		writeError(w, http.StatusBadRequest, "Filename is required")
		return
	}
	f, ok, err := h.service.ParseFilename(r.Context(), body.Filename)
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, filenameParseResponse{})
		return
	}
	writeJSON(w, http.StatusOK, filenameParseResponse{
		Matched:  true,
		Year:     f.Year,
		Month:    f.Month,
		Facility: f.Facility,
		Pattern:  f.Pattern,
	})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.EmailSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, settingsEnvelope{Settings: &emailSettingsBody{
		NotificationEmail: s.NotificationEmail,
		SMTPHost:          s.SMTPHost,
		SMTPPort:          s.SMTPPort,
		SMTPUser:          s.SMTPUser,
		SMTPPass:          s.SMTPPass,
		SendOnError:       s.SendOnError,
		SendOnCompletion:  s.SendOnCompletion,
	}})
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsEnvelope
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Settings == nil {
		writeError(w, http.StatusBadRequest, "Settings are required")
		return
	}
	s := body.Settings
	err := h.service.SaveEmailSettings(r.Context(), reports.EmailSettings{
		NotificationEmail: strings.TrimSpace(s.NotificationEmail),
		SMTPHost:          strings.TrimSpace(s.SMTPHost),
		SMTPPort:          strings.TrimSpace(s.SMTPPort),
		SMTPUser:          strings.TrimSpace(s.SMTPUser),
		SMTPPass:          s.SMTPPass,
		SendOnError:       s.SendOnError,
		SendOnCompletion:  s.SendOnCompletion,
	})
	if err != nil {
		h.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleYears lists the current year and the four before it, newest first.
func (h *Handler) handleYears(w http.ResponseWriter, _ *http.Request) {
	current := h.now().Year()
	years := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		years = append(years, strconv.Itoa(current-i))
	}
	writeJSON(w, http.StatusOK, yearsResponse{Years: years})
}

func parseID(w http.ResponseWriter, raw string) (uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Download ID is required")
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid download ID")
		return 0, false
	}
	return uint(id), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes. notFoundMsg is the
// message of a 404.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, reports.ErrInvalidPattern):
		writeError(w, http.StatusBadRequest, "Invalid regex pattern")
	case errors.Is(err, reports.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), reports.ErrInvalidInput.Error()+": "))
	case errors.Is(err, reports.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "Not found"
		}
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, reports.ErrTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}
