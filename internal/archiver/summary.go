package archiver

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Failed reports whether any resource could not be archived.
func (s Summary) Failed() bool {
	return s.Download.Failed > 0 || s.Upload.Failed > 0 || s.Upload.Pending > 0
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("downloaded", s.Download.Downloaded),
		slog.Int("skipped", s.Download.Skipped),
		slog.Int("download_failed", s.Download.Failed),
		slog.Int("invalid", s.Download.Invalid),
		slog.Int("success", s.Upload.Success),
		slog.Int("failed", s.Upload.Failed),
		slog.Int("pending", s.Upload.Pending),
		slog.String("uploaded", humanize.IBytes(uint64(s.BytesUploaded))),
		slog.String("duration", s.Duration.Round(time.Millisecond).String()),
	)
}

// Message renders the summary for chat notifications.
func (s Summary) Message() string {
	var b strings.Builder

	icon := "✅"
	if s.Failed() {
		icon = "⚠️"
	}

	fmt.Fprintf(&b, "%s Archive run %s finished in %s\n", icon, s.RunID, s.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Downloads: %d new, %d already staged, %d failed, %d invalid\n",
		s.Download.Downloaded, s.Download.Skipped, s.Download.Failed, s.Download.Invalid)
	fmt.Fprintf(&b, "Uploads: %d succeeded, %d failed", s.Upload.Success, s.Upload.Failed)

	if s.Upload.Pending > 0 {
		fmt.Fprintf(&b, ", %d not started", s.Upload.Pending)
	}

	fmt.Fprintf(&b, " (%s)", humanize.IBytes(uint64(s.BytesUploaded)))

	return b.String()
}
