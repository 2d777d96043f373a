package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Record is one facility entry: an ordered map from field label to value.
// The source schema is not fixed, so arbitrary labels are preserved in
// first-seen order alongside the known columns.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds an empty record.
func NewRecord() *Record {
	return &Record{values: map[string]string{}}
}

// Set stores a value, appending the key on first sight.
func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = map[string]string{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, or "" when absent.
func (r *Record) Get(key string) string {
	return r.values[key]
}

// Has reports whether the key was ever set.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns field labels in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Code returns the canonical identifier.
func (r *Record) Code() string {
	return r.values[FieldCode]
}

// Clone returns an independent copy.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, k := range r.keys {
		out.Set(k, r.values[k])
	}
	return out
}

// MarshalJSON emits fields in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ListingSummary carries what page 1 of the directory declares about itself.
type ListingSummary struct {
	TotalCount int
	FinalPage  int
}

// FetchFailure records one identifier that could not be turned into a Record.
type FetchFailure struct {
	ID  string
	Err error
}

// ExportArtifact names the files produced by a backed-up export.
type ExportArtifact struct {
	LatestTabular  string
	LatestDocument string
	BackupDir      string
}

// MergeResult aggregates one key-join run over exported rows.
type MergeResult struct {
	Rows      []map[string]any
	Matched   int
	Unmatched int
}

// RunRecord is the provenance snapshot persisted after a pipeline run.
type RunRecord struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Fetched    int
	Failed     int
	Exported   int
	Matched    int
	Summary    string
}
