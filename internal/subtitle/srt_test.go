package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.042, "00:01:01,042"},
		{3661.999, "01:01:01,999"},
		{7322.0005, "02:02:02,001"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatTimestamp(tt.seconds))
	}
}

func TestRender(t *testing.T) {
	results := []ledger.SegmentResult{
		{Index: 0, Start: 0, End: 30, Text: " Hello there. "},
		{Index: 1, Start: 30, End: 60, Text: ""},
		{Index: 2, Start: 60, End: 90, Text: "Goodbye."},
	}

	got := Render(results)
	want := "1\n00:00:00,000 --> 00:00:30,000\nHello there.\n\n" +
		"2\n00:01:00,000 --> 00:01:30,000\nGoodbye.\n"
	assert.Equal(t, want, got)
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "", Render([]ledger.SegmentResult{{Index: 0, Text: "   "}}))
}
