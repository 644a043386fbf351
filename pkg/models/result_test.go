package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_RoundTrip(t *testing.T) {
	original := &JobResult{
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G', 0x00, 0x01},
	}

	data, err := EncodeResult("job-1", original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "JobResult"`)

	id, decoded, err := DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, original, decoded)
}

func TestDecodeResult_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"wrong discriminator", `{"id": "a", "type": "GetMap", "job": {}}`, ErrMalformedEnvelope},
		{"unknown payload field", `{"id": "a", "type": "JobResult", "job": {"content_type": "x", "data": null, "oops": 1}}`, ErrMalformedEnvelope},
		{"missing content type", `{"id": "a", "type": "JobResult", "job": {"data": "aGk="}}`, ErrMissingRequiredField},
		{"not json", `0`, ErrMalformedEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeResult([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsFailureSentinel(t *testing.T) {
	assert.True(t, IsFailureSentinel([]byte("0")))
	assert.True(t, IsFailureSentinel([]byte(" 0\n")))
	assert.False(t, IsFailureSentinel([]byte(`{"id": "a"}`)))
	assert.False(t, IsFailureSentinel(nil))
}
