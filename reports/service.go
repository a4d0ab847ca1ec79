package reports

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	yearRe     = regexp.MustCompile(`^\d{4}$`)
	facilityRe = regexp.MustCompile(`^\d{2}-\d{4}$`)
)

type ServiceConfig struct {
	// TotalFiles is the denominator of the progress estimate.
	TotalFiles int
	Debug      bool
}

// Service implements the download, pattern, error log and settings operations
// on top of a Store.
type Service struct {
	cfg     ServiceConfig
	store   *Store
	cache   *ArchiveCache
	metrics *Metrics
	logger  *log.Logger
}

// NewService wires a service. cache and metrics may be nil.
func NewService(cfg ServiceConfig, store *Store, cache *ArchiveCache, metrics *Metrics, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.TotalFiles <= 0 {
		cfg.TotalFiles = AssumedTotalFiles
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{cfg: cfg, store: store, cache: cache, metrics: metrics, logger: logger}, nil
}

func (s *Service) debugf(format string, args ...any) {
	if s == nil || !s.cfg.Debug {
		return
	}
	s.logger.Printf(format, args...)
}

type DownloadRequest struct {
	Year       string
	Month      string
	FacilityID string
	UserID     string
}

func (r DownloadRequest) normalize() (DownloadRecord, error) {
	year := strings.TrimSpace(r.Year)
	if year == "" {
		return DownloadRecord{}, fmt.Errorf("%w: year is required", ErrInvalidInput)
	}
	if !yearRe.MatchString(year) {
		return DownloadRecord{}, fmt.Errorf("%w: year must have four digits", ErrInvalidInput)
	}
	rec := DownloadRecord{Year: year, UserID: strings.TrimSpace(r.UserID), Status: StatusPending}
	if rec.UserID == "" {
		rec.UserID = "anonymous"
	}
	if m := strings.ToLower(strings.TrimSpace(r.Month)); m != "" {
		if !isMonth(m) {
			return DownloadRecord{}, fmt.Errorf("%w: unknown month %q", ErrInvalidInput, r.Month)
		}
		rec.Month = &m
	}
	if f := strings.TrimSpace(r.FacilityID); f != "" {
		if !facilityRe.MatchString(f) {
			return DownloadRecord{}, fmt.Errorf("%w: facility id must look like NN-NNNN", ErrInvalidInput)
		}
		rec.FacilityID = &f
	}
	return rec, nil
}

func isMonth(m string) bool {
	for _, name := range Months {
		if name == m {
			return true
		}
	}
	return false
}

// RequestDownload records a new pending download.
func (s *Service) RequestDownload(ctx context.Context, req DownloadRequest) (*DownloadRecord, error) {
	rec, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateDownload(ctx, &rec); err != nil {
		return nil, err
	}
	s.metrics.DownloadRequested()
	s.debugf("download requested id=%d year=%s user=%s", rec.ID, rec.Year, rec.UserID)
	return &rec, nil
}

type DownloadStatusView struct {
	Record   DownloadRecord
	Progress int
}

func (s *Service) Status(ctx context.Context, id uint) (*DownloadStatusView, error) {
	rec, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DownloadStatusView{
		Record:   *rec,
		Progress: EstimateProgress(rec.Status, rec.FileCount, s.cfg.TotalFiles),
	}, nil
}

type Archive struct {
	Filename string
	Data     []byte
	Digest   string
}

// Archive renders the ZIP for a download, serving finished records from the cache.
func (s *Service) Archive(ctx context.Context, id uint) (*Archive, error) {
	rec, err := s.store.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	terminal := rec.Status.IsTerminal()

	if terminal {
		data, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Printf("archive cache get id=%d: %v", id, err)
		}
		if ok {
			s.metrics.ArchiveServed(len(data), true)
			return &Archive{Filename: ArchiveFilename(*rec), Data: data, Digest: ContentDigest(data, 0)}, nil
		}
	}

	data, err := BuildArchive(*rec)
	if err != nil {
		return nil, err
	}
	if terminal {
		if err := s.cache.Put(ctx, id, data); err != nil {
			s.logger.Printf("archive cache put id=%d: %v", id, err)
		}
	}
	s.metrics.ArchiveServed(len(data), false)
	s.debugf("archive built id=%d bytes=%d", id, len(data))
	return &Archive{Filename: ArchiveFilename(*rec), Data: data, Digest: ContentDigest(data, 0)}, nil
}

type ErrorReport struct {
	DownloadID   *uint
	ErrorMessage string
	StackTrace   string
	BrowserInfo  string
	PageURL      string
	UserID       string
}

func (s *Service) LogError(ctx context.Context, r ErrorReport) (*ErrorLogEntry, error) {
	if strings.TrimSpace(r.ErrorMessage) == "" {
		return nil, fmt.Errorf("%w: error_message is required", ErrInvalidInput)
	}
	entry := ErrorLogEntry{
		DownloadID:   r.DownloadID,
		ErrorMessage: r.ErrorMessage,
		StackTrace:   r.StackTrace,
		BrowserInfo:  r.BrowserInfo,
		PageURL:      r.PageURL,
		UserID:       strings.TrimSpace(r.UserID),
	}
	if entry.UserID == "" {
		entry.UserID = "anonymous"
	}
	if err := s.store.CreateErrorLog(ctx, &entry); err != nil {
		return nil, err
	}
	s.metrics.ErrorLogged()
	return &entry, nil
}

func (s *Service) ListErrors(ctx context.Context, f ErrorLogFilter) ([]ErrorLogEntry, error) {
	return s.store.ListErrorLogs(ctx, f)
}

func (s *Service) ListPatterns(ctx context.Context) ([]RegexPattern, error) {
	return s.store.ListPatterns(ctx, false)
}

type NewPattern struct {
	Name        string
	Pattern     string
	Description string
	// IsActive defaults to true when nil.
	IsActive *bool
}

func (s *Service) CreatePattern(ctx context.Context, in NewPattern) (*RegexPattern, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Pattern) == "" {
		return nil, fmt.Errorf("%w: name and pattern are required", ErrInvalidInput)
	}
	if _, err := CompilePattern(in.Pattern); err != nil {
		return nil, err
	}
	p := RegexPattern{Name: name, Pattern: in.Pattern, Description: in.Description, IsActive: true}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := s.store.CreatePattern(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) TestPattern(pattern, filename string) (PatternMatch, error) {
	m, err := TestPattern(pattern, filename)
	switch {
	case err != nil:
		s.metrics.PatternTested("invalid")
	case m.Matched:
		s.metrics.PatternTested("matched")
	default:
		s.metrics.PatternTested("unmatched")
	}
	return m, err
}

// ParseFilename runs the active stored patterns against filename.
func (s *Service) ParseFilename(ctx context.Context, filename string) (FilenameFields, bool, error) {
	patterns, err := s.store.ListPatterns(ctx, true)
	if err != nil {
		return FilenameFields{}, false, err
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns()[:1]
	}
	f, ok := ParseFilename(patterns, filename)
	return f, ok, nil
}

func (s *Service) EmailSettings(ctx context.Context) (EmailSettings, error) {
	kv, err := s.store.LoadSettings(ctx)
	if err != nil {
		return EmailSettings{}, err
	}
	return emailSettingsFromRows(kv), nil
}

func (s *Service) SaveEmailSettings(ctx context.Context, in EmailSettings) error {
	if in.SMTPPort == "" {
		in.SMTPPort = DefaultEmailSettings().SMTPPort
	}
	if err := in.Validate(); err != nil {
		return err
	}
	return s.store.SaveSettings(ctx, in.toRows())
}
