package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the wire-level wrapper around one job payload:
// {"id": ..., "type": ..., "job": ...}. The top level is rendered with a
// space after each key so the serialized form always contains the literal
// substring `"type": "<kind>"`, which lets workers route by textual probe
// before parsing.
type Envelope struct {
	ID   string
	Kind JobKind
	Job  Job
}

type envelopeWire struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Job  json.RawMessage `json:"job"`
}

// NewEnvelope wraps a payload with a fresh id. Payload types outside the
// closed variant set are rejected.
func NewEnvelope(job Job) (*Envelope, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", ErrUnsupportedJobKind)
	}
	kind := job.Kind()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, kind)
	}
	return &Envelope{
		ID:   uuid.New().String(),
		Kind: kind,
		Job:  job,
	}, nil
}

// Encode serializes the envelope into its canonical JSON document.
func (e *Envelope) Encode() ([]byte, error) {
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, e.Kind)
	}
	payload, err := json.Marshal(e.Job)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Kind, err)
	}
	return encodeWire(e.ID, string(e.Kind), payload)
}

// encodeWire assembles the spaced top-level document shared by job and
// result envelopes.
func encodeWire(id, discriminator string, payload []byte) ([]byte, error) {
	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode id: %w", err)
	}
	typeJSON, err := json.Marshal(discriminator)
	if err != nil {
		return nil, fmt.Errorf("encode discriminator: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(idJSON) + len(typeJSON) + len(payload) + 32)
	buf.WriteString(`{"id": `)
	buf.Write(idJSON)
	buf.WriteString(`, "type": `)
	buf.Write(typeJSON)
	buf.WriteString(`, "job": `)
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DiscriminatorToken returns the probe substring a canonical envelope of
// the given discriminator always contains.
func DiscriminatorToken(name string) []byte {
	return []byte(`"type": "` + name + `"`)
}

// ProbeKind routes a raw envelope by textual probe without parsing it.
func ProbeKind(data []byte) (JobKind, bool) {
	for _, kind := range JobKinds() {
		if bytes.Contains(data, DiscriminatorToken(string(kind))) {
			return kind, true
		}
	}
	return "", false
}

// PeekEnvelopeID extracts the id from a raw envelope leniently, for error
// reporting on documents that fail strict decoding. Returns "" when no id
// is recoverable.
func PeekEnvelopeID(data []byte) string {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return ""
	}
	return wire.ID
}

// DecodeEnvelope parses and validates a raw envelope. Unknown top-level or
// payload fields fail with ErrMalformedEnvelope; unknown discriminators
// with ErrUnsupportedJobKind; missing payload fields with
// ErrMissingRequiredField.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var wire envelopeWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingRequiredField)
	}
	kind := JobKind(wire.Type)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, wire.Type)
	}
	if len(wire.Job) == 0 {
		return nil, fmt.Errorf("%w: job", ErrMissingRequiredField)
	}
	job, err := decodePayload(kind, wire.Job)
	if err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &Envelope{ID: wire.ID, Kind: kind, Job: job}, nil
}

// DecodeJob decodes a bare payload document of a known kind, applying the
// same strictness and validation as DecodeEnvelope.
func DecodeJob(kind JobKind, payload []byte) (Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, kind)
	}
	job, err := decodePayload(kind, payload)
	if err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func decodePayload(kind JobKind, payload []byte) (Job, error) {
	var job Job
	switch kind {
	case KindGetMap:
		job = &GetMapJob{}
	case KindGetFeatureInfo:
		job = &GetFeatureInfoJob{}
	case KindGetFeature:
		job = &GetFeatureJob{}
	case KindLegend:
		job = &LegendJob{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, kind)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(job); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedEnvelope, kind, err)
	}
	return job, nil
}
