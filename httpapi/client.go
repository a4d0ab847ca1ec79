package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"refinery-reports/reports"
)

var (
	ErrDownloadNotFound = errors.New("httpapi: download not found")
	ErrServerError      = errors.New("httpapi: server error")
)

// ClientOptions configures Client.
type ClientOptions struct {
	// BaseURL of the service, e.g. http://localhost:8080.
	BaseURL string

	// Timeout for individual requests.
	// Default: 10s
	Timeout time.Duration

	// UserID is attached to error reports that do not set one.
	// Default: anonymous
	UserID string

	// Logger receives failures of best-effort calls.
	// Default: log.Default()
	Logger *log.Logger
}

// Client talks to the service's JSON API. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	userID string
	logger *log.Logger
}

func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserID == "" {
		opts.UserID = "anonymous"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: opts.Timeout},
		userID: opts.UserID,
		logger: opts.Logger,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// FetchStatus implements reports.StatusSource.
func (c *Client) FetchStatus(ctx context.Context, downloadID uint) (reports.StatusSnapshot, error) {
	q := url.Values{"downloadId": {strconv.FormatUint(uint64(downloadID), 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/status", q), nil)
	if err != nil {
		return reports.StatusSnapshot{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return reports.StatusSnapshot{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return reports.StatusSnapshot{}, err
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return reports.StatusSnapshot{}, fmt.Errorf("decode status: %w", err)
	}
	return reports.StatusSnapshot{
		Status:     reports.DownloadStatus(body.Status),
		FileCount:  body.FileCount,
		ErrorCount: body.ErrorCount,
	}, nil
}

// ErrorDetails is the optional context of a reported error.
type ErrorDetails struct {
	DownloadID  *uint
	StackTrace  string
	BrowserInfo string
	PageURL     string
	UserID      string
}

// ReportError records err with the service. It never fails: problems are
// written to the logger and the result only says whether an id came back.
func (c *Client) ReportError(ctx context.Context, err error, details ErrorDetails) bool {
	if err == nil {
		return false
	}
	userID := details.UserID
	if userID == "" {
		userID = c.userID
	}
	payload, mErr := json.Marshal(errorLogRequest{
		DownloadID:   details.DownloadID,
		ErrorMessage: err.Error(),
		StackTrace:   details.StackTrace,
		BrowserInfo:  details.BrowserInfo,
		PageURL:      details.PageURL,
		UserID:       userID,
	})
	if mErr != nil {
		c.logger.Printf("error report: encode: %v", mErr)
		return false
	}

	req, rErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/errors", nil), bytes.NewReader(payload))
	if rErr != nil {
		c.logger.Printf("error report: create request: %v", rErr)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, dErr := c.http.Do(req)
	if dErr != nil {
		c.logger.Printf("error report: send: %v", dErr)
		return false
	}
	defer resp.Body.Close()

	if cErr := checkResponse(resp); cErr != nil {
		c.logger.Printf("error report: %v", cErr)
		return false
	}
	var out createdResponse
	if jErr := json.NewDecoder(resp.Body).Decode(&out); jErr != nil {
		c.logger.Printf("error report: decode: %v", jErr)
		return false
	}
	return out.ID != 0
}

// ReportPollError implements reports.ErrorSink.
func (c *Client) ReportPollError(ctx context.Context, downloadID uint, err error) {
	id := downloadID
	c.ReportError(ctx, fmt.Errorf("progress poll: %w", err), ErrorDetails{DownloadID: &id})
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrDownloadNotFound, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, msg)
	default:
		return fmt.Errorf("httpapi: unexpected status %d: %s", resp.StatusCode, msg)
	}
}
