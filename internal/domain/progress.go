package domain

import "time"

// ProgressStatus is the coarse state of a download.
type ProgressStatus string

const (
	ProgressIdle        ProgressStatus = "IDLE"
	ProgressDownloading ProgressStatus = "DOWNLOADING"
	ProgressError       ProgressStatus = "ERROR"
)

// DownloadProgress is the transient, observational record of the running or
// last failed download. It is never read by the policy compiler.
type DownloadProgress struct {
	Status          ProgressStatus `json:"status"`
	Percent         int            `json:"percent"`
	DownloadedBytes int64          `json:"downloadedBytes"`
	TotalBytes      int64          `json:"totalBytes"`
	Estimated       bool           `json:"estimated,omitempty"`
	Mirror          string         `json:"mirror,omitempty"`
	RunID           string         `json:"runId,omitempty"`
	Error           string         `json:"error,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// EstimatePercent computes a best-effort completion percentage. total is the
// declared content length, or a fallback estimate when none was declared.
// While the transfer is running the result stays below 100.
func EstimatePercent(downloaded, total int64) int {
	if total <= 0 || downloaded <= 0 {
		return 0
	}
	pct := int(downloaded * 100 / total)
	if pct > 99 {
		pct = 99
	}
	return pct
}
