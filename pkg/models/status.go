package models

import (
	"strconv"
	"time"
)

// JobStatus is the per-job state stored on the broker.
// Lifecycle: queued -> running -> (succeed | failed).
type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusSucceed JobStatus = "succeed"
	StatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further transitions may occur.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSucceed || s == StatusFailed
}

// Valid reports whether s is one of the four known states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceed, StatusFailed:
		return true
	}
	return false
}

// Field names of the per-job record hash. TimestampField holds the time of
// the last transition; each transition additionally writes
// "timestamp.<status>".
const (
	FieldStatus      = "status"
	FieldTimestamp   = "timestamp"
	FieldDuration    = "duration"
	FieldContentType = "content_type"
	FieldError       = "error"
)

// StatusTimestampField returns the dedicated timestamp field for a status,
// e.g. "timestamp.running".
func StatusTimestampField(s JobStatus) string {
	return FieldTimestamp + "." + string(s)
}

// FormatTimestamp renders t the way record timestamps are stored (ISO-8601,
// UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatDuration renders an elapsed duration as decimal seconds, the unit
// of the record's duration field.
func FormatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Record is the parsed form of a per-job record hash.
type Record struct {
	Status      JobStatus         `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Duration    string            `json:"duration,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Error       string            `json:"error,omitempty"`
	Transitions map[string]string `json:"transitions,omitempty"` // timestamp.<status> -> raw value
}

// ParseRecord builds a Record from the raw hash fields. An empty map means
// the record does not exist and yields ok=false.
func ParseRecord(fields map[string]string) (*Record, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	rec := &Record{
		Status:      JobStatus(fields[FieldStatus]),
		Duration:    fields[FieldDuration],
		ContentType: fields[FieldContentType],
		Error:       fields[FieldError],
	}
	if raw, ok := fields[FieldTimestamp]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.Timestamp = ts
		}
	}
	for key, value := range fields {
		if len(key) > len(FieldTimestamp)+1 && key[:len(FieldTimestamp)+1] == FieldTimestamp+"." {
			if rec.Transitions == nil {
				rec.Transitions = make(map[string]string)
			}
			rec.Transitions[key] = value
		}
	}
	return rec, true
}

// IsJobRecord reports whether a raw hash looks like a per-job record: it
// must carry both a recognizable status and a rolling timestamp. Used by
// the janitor to tell job records apart from unrelated hashes.
func IsJobRecord(fields map[string]string) bool {
	status, ok := fields[FieldStatus]
	if !ok {
		return false
	}
	if _, ok := fields[FieldTimestamp]; !ok {
		return false
	}
	return JobStatus(status).Valid()
}
