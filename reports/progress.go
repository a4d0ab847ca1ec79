package reports

import "math"

// AssumedTotalFiles is the file count a full-year download is expected to
// reach: 12 months of 30 reports.
const AssumedTotalFiles = 360

// EstimateProgress maps a status and file count to a percentage.
// Non-terminal downloads never report more than 99.
func EstimateProgress(status DownloadStatus, fileCount int, totalFiles int) int {
	if status.IsTerminal() {
		return 100
	}
	if fileCount <= 0 {
		return 0
	}
	if totalFiles <= 0 {
		totalFiles = AssumedTotalFiles
	}
	pct := int(math.Round(float64(fileCount) / float64(totalFiles) * 100))
	if pct > 99 {
		return 99
	}
	return pct
}
