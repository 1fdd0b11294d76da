// Package subtitle renders SRT subtitle content from committed segment
// results.
package subtitle

import (
	"fmt"
	"math"
	"strings"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// Render converts segment results into SRT content. Cues keep the segment
// order, empty texts are skipped and the output ends with a single newline so
// most players accept the file. Results with no text at all yield an empty
// string.
func Render(results []ledger.SegmentResult) string {
	var b strings.Builder
	cue := 1

	for _, result := range results {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}

		fmt.Fprintf(&b, "%d\n", cue)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(result.Start), FormatTimestamp(result.End))
		fmt.Fprintf(&b, "%s\n\n", text)
		cue++
	}

	if b.Len() == 0 {
		return ""
	}
	return strings.TrimSpace(b.String()) + "\n"
}

// FormatTimestamp converts seconds to the SRT timestamp form HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	total := int(math.Round(seconds * 1000))
	if total < 0 {
		total = 0
	}

	hours := total / 3_600_000
	remainder := total % 3_600_000
	minutes := remainder / 60_000
	remainder %= 60_000
	secs := remainder / 1000
	millis := remainder % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
