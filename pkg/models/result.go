package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultDiscriminator is the discriminator of result envelopes published on
// the notification channel.
const ResultDiscriminator = "JobResult"

// FailureSentinel is the notification payload published for a failed job;
// the error text lives in the per-job record, not on the channel.
const FailureSentinel = "0"

// JobResult is the terminal product of a successful job. Data is opaque to
// the fabric; ContentType names its media type. In the JSON form Data is
// base64-encoded.
type JobResult struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// EncodeResult wraps a result in the envelope scheme used for requests,
// with the JobResult discriminator and the job id it answers.
func EncodeResult(id string, result *JobResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("encode result: nil result")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result payload: %w", err)
	}
	return encodeWire(id, ResultDiscriminator, payload)
}

// DecodeResult parses a result envelope received from the notification
// channel and returns the id it answers along with the result.
func DecodeResult(data []byte) (string, *JobResult, error) {
	var wire envelopeWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return "", nil, fmt.Errorf("%w: result envelope: %v", ErrMalformedEnvelope, err)
	}
	if wire.Type != ResultDiscriminator {
		return "", nil, fmt.Errorf("%w: result discriminator %q", ErrMalformedEnvelope, wire.Type)
	}
	var result JobResult
	payloadDec := json.NewDecoder(bytes.NewReader(wire.Job))
	payloadDec.DisallowUnknownFields()
	if err := payloadDec.Decode(&result); err != nil {
		return "", nil, fmt.Errorf("%w: result payload: %v", ErrMalformedEnvelope, err)
	}
	if result.ContentType == "" {
		return "", nil, fmt.Errorf("%w: content_type", ErrMissingRequiredField)
	}
	return wire.ID, &result, nil
}

// IsFailureSentinel reports whether a notification payload is the failure
// marker rather than an encoded result.
func IsFailureSentinel(payload []byte) bool {
	return string(bytes.TrimSpace(payload)) == FailureSentinel
}
