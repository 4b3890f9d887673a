package agent

import "testing"

func TestTruncateReportDataUnderLimit(t *testing.T) {
	if got := truncateReportData("short"); got != "short" {
		t.Fatalf("expected unchanged, got %q", got)
	}
}

func TestTruncateReportDataOverLimit(t *testing.T) {
	data := make([]byte, maxReportDataLen+500)
	for i := range data {
		data[i] = 'x'
	}
	got := truncateReportData(string(data))
	want := string(data[:maxReportDataLen]) + "… (truncated)"
	if got != want {
		t.Fatalf("truncation mismatch: len(got)=%d", len(got))
	}
}
