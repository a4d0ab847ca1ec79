package reports

import (
	"math"
	"testing"
)

func TestEstimateProgress_NonTerminalFollowsFormula(t *testing.T) {
	for fc := 0; fc < AssumedTotalFiles; fc++ {
		want := int(math.Round(float64(fc) / 360 * 100))
		if want > 99 {
			want = 99
		}
		got := EstimateProgress(StatusInProgress, fc, AssumedTotalFiles)
		if got != want {
			t.Fatalf("fileCount=%d: expected %d, got %d", fc, want, got)
		}
	}
}

func TestEstimateProgress_CapsAt99UntilTerminal(t *testing.T) {
	for _, fc := range []int{356, 360, 361, 1000} {
		if got := EstimateProgress(StatusInProgress, fc, AssumedTotalFiles); got != 99 {
			t.Fatalf("fileCount=%d: expected 99, got %d", fc, got)
		}
		if got := EstimateProgress(StatusPending, fc, AssumedTotalFiles); got != 99 {
			t.Fatalf("pending fileCount=%d: expected 99, got %d", fc, got)
		}
	}
}

func TestEstimateProgress_TerminalIs100(t *testing.T) {
	for _, st := range []DownloadStatus{StatusCompleted, StatusCompletedWithErrors} {
		for _, fc := range []int{0, 5, 360, 720} {
			if got := EstimateProgress(st, fc, AssumedTotalFiles); got != 100 {
				t.Fatalf("status=%s fileCount=%d: expected 100, got %d", st, fc, got)
			}
		}
	}
}

func TestEstimateProgress_DefaultsTotal(t *testing.T) {
	if got := EstimateProgress(StatusInProgress, 180, 0); got != 50 {
		t.Fatalf("expected 50 with default total, got %d", got)
	}
	if got := EstimateProgress(StatusInProgress, 3, 36); got != 8 {
		t.Fatalf("expected 8 with total 36, got %d", got)
	}
}
