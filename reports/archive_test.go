package reports

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for i, f := range zr.File {
		if i == 0 && f.Name != "README.txt" {
			t.Fatalf("expected README.txt first, got %s", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func TestBuildArchive_FullYear(t *testing.T) {
	rec := DownloadRecord{ID: 1, Year: "2024", FileCount: 360, ErrorCount: 2, Status: StatusCompletedWithErrors}
	data, err := BuildArchive(rec)
	if err != nil {
		t.Fatal(err)
	}
	files := readZip(t, data)
	if len(files) != 37 {
		t.Fatalf("expected 36 reports + README, got %d entries", len(files))
	}
	pdfs := 0
	for name, body := range files {
		if name == "README.txt" {
			continue
		}
		pdfs++
		if body != placeholderPDF {
			t.Fatalf("unexpected body for %s: %q", name, body)
		}
	}
	if pdfs != 36 {
		t.Fatalf("expected 36 placeholder files, got %d", pdfs)
	}
	for _, want := range []string{"01-0001/01-0001_2024-jan.pdf", "02-0002/02-0002_2024-jun.pdf", "03-0003/03-0003_2024-dec.pdf"} {
		if _, ok := files[want]; !ok {
			t.Fatalf("missing %s", want)
		}
	}

	readme := files["README.txt"]
	for _, want := range []string{
		"Texas Refinery PDF Reports",
		"Year: 2024",
		"Month: All months",
		"Facility ID: All facilities",
		"Files downloaded: 360",
		"Errors encountered: 2",
		"Download completed at: not completed",
	} {
		if !strings.Contains(readme, want) {
			t.Fatalf("README missing %q:\n%s", want, readme)
		}
	}
}

func TestBuildArchive_SingleMonthAndFacility(t *testing.T) {
	done := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	rec := DownloadRecord{Year: "2024", Month: strPtr("march"), FacilityID: strPtr("01-0001"), FileCount: 3, CompletedAt: &done, Status: StatusCompleted}
	data, err := BuildArchive(rec)
	if err != nil {
		t.Fatal(err)
	}
	files := readZip(t, data)
	if len(files) != 2 {
		t.Fatalf("expected README + 1 report, got %d", len(files))
	}
	if _, ok := files["01-0001/01-0001_2024-mar.pdf"]; !ok {
		t.Fatalf("missing 01-0001/01-0001_2024-mar.pdf, got %v", files)
	}
	readme := files["README.txt"]
	if !strings.Contains(readme, "Month: march") || !strings.Contains(readme, "Facility ID: 01-0001") {
		t.Fatalf("unexpected README:\n%s", readme)
	}
	if !strings.Contains(readme, "Download completed at: "+done.Format(time.RFC1123)) {
		t.Fatalf("README missing completion time:\n%s", readme)
	}
}

func TestBuildArchive_MonthOnly(t *testing.T) {
	data, err := BuildArchive(DownloadRecord{Year: "2023", Month: strPtr("September")})
	if err != nil {
		t.Fatal(err)
	}
	files := readZip(t, data)
	if len(files) != 4 {
		t.Fatalf("expected README + 3 facilities, got %d", len(files))
	}
	if _, ok := files["02-0002/02-0002_2023-sep.pdf"]; !ok {
		t.Fatalf("missing lowercased abbreviation entry, got %v", files)
	}
}

func TestArchiveFilename(t *testing.T) {
	cases := []struct {
		rec  DownloadRecord
		want string
	}{
		{DownloadRecord{Year: "2024"}, "texas_refinery_reports_2024.zip"},
		{DownloadRecord{Year: "2024", Month: strPtr("march")}, "texas_refinery_reports_2024_march.zip"},
		{DownloadRecord{Year: "2024", FacilityID: strPtr("01-0001")}, "texas_refinery_reports_2024_01-0001.zip"},
		{DownloadRecord{Year: "2024", Month: strPtr("march"), FacilityID: strPtr("01-0001")}, "texas_refinery_reports_2024_march_01-0001.zip"},
	}
	for _, tc := range cases {
		if got := ArchiveFilename(tc.rec); got != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}
}
