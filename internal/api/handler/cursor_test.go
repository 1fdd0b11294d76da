package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &ledger.JobCursor{
		CreatedAt: time.Date(2026, 2, 14, 8, 30, 0, 123456789, time.UTC),
		JobID:     "0b7f9a44-2f05-4a3e-9d6b-1c2d3e4f5a6b",
	}

	encoded := EncodeJobCursor(cursor)
	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, decoded.CreatedAt.Equal(cursor.CreatedAt))
	assert.Equal(t, cursor.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	decoded, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	_, err := DecodeJobCursor("%%%not-base64%%%")
	assert.Error(t, err)

	_, err = DecodeJobCursor(base64.StdEncoding.EncodeToString([]byte("no-separator")))
	assert.Error(t, err)

	_, err = DecodeJobCursor(base64.StdEncoding.EncodeToString([]byte("not-a-number|job-1")))
	assert.Error(t, err)
}
