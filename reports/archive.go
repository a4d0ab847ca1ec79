package reports

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"
)

const placeholderPDF = "This is a placeholder for PDF content. In the real application, this would be actual PDF data."

// DefaultFacilities is used when a download is not scoped to one facility.
var DefaultFacilities = []string{"01-0001", "02-0002", "03-0003"}

var Months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func monthAbbrev(month string) string {
	m := strings.ToLower(month)
	if len(m) > 3 {
		return m[:3]
	}
	return m
}

// ArchiveEntryName is the path of the report for one facility and month.
func ArchiveEntryName(year, facility, month string) string {
	return fmt.Sprintf("%s/%s_%s-%s.pdf", facility, facility, year, monthAbbrev(month))
}

func ArchiveFilename(rec DownloadRecord) string {
	var b strings.Builder
	b.WriteString("texas_refinery_reports_")
	b.WriteString(rec.Year)
	if rec.Month != nil && *rec.Month != "" {
		b.WriteString("_" + *rec.Month)
	}
	if rec.FacilityID != nil && *rec.FacilityID != "" {
		b.WriteString("_" + *rec.FacilityID)
	}
	b.WriteString(".zip")
	return b.String()
}

func archiveFacilities(rec DownloadRecord) []string {
	if rec.FacilityID != nil && *rec.FacilityID != "" {
		return []string{*rec.FacilityID}
	}
	return DefaultFacilities
}

func archiveMonths(rec DownloadRecord) []string {
	if rec.Month != nil && *rec.Month != "" {
		return []string{strings.ToLower(*rec.Month)}
	}
	return Months
}

func readmeText(rec DownloadRecord) string {
	month := "All months"
	if rec.Month != nil && *rec.Month != "" {
		month = *rec.Month
	}
	facility := "All facilities"
	if rec.FacilityID != nil && *rec.FacilityID != "" {
		facility = *rec.FacilityID
	}
	completed := "not completed"
	if rec.CompletedAt != nil {
		completed = rec.CompletedAt.UTC().Format(time.RFC1123)
	}

	var b strings.Builder
	b.WriteString("Texas Refinery PDF Reports\n")
	b.WriteString("==========================\n\n")
	b.WriteString("This ZIP file contains refinery reports downloaded from the Texas Railroad Commission website.\n")
	fmt.Fprintf(&b, "Year: %s\n", rec.Year)
	fmt.Fprintf(&b, "Month: %s\n", month)
	fmt.Fprintf(&b, "Facility ID: %s\n\n", facility)
	fmt.Fprintf(&b, "Files downloaded: %d\n", rec.FileCount)
	fmt.Fprintf(&b, "Errors encountered: %d\n\n", rec.ErrorCount)
	fmt.Fprintf(&b, "Download completed at: %s\n", completed)
	return b.String()
}

// BuildArchive renders the whole archive for rec into memory. README.txt is
// written first, followed by one placeholder report per facility and month.
func BuildArchive(rec DownloadRecord) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeZipEntry(zw, "README.txt", readmeText(rec)); err != nil {
		return nil, err
	}
	for _, facility := range archiveFacilities(rec) {
		for _, month := range archiveMonths(rec) {
			if err := writeZipEntry(zw, ArchiveEntryName(rec.Year, facility, month), placeholderPDF); err != nil {
				return nil, err
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeZipEntry(zw *zip.Writer, name, body string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
