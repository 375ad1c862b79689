package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Singer message types.
const (
	TypeSchema = "SCHEMA"
	TypeRecord = "RECORD"
	TypeState  = "STATE"
	TypeBatch  = "BATCH"
)

// SchemaMessage announces the shape of the records that follow.
type SchemaMessage struct {
	Type               string   `json:"type"`
	Stream             string   `json:"stream"`
	Schema             *Schema  `json:"schema"`
	KeyProperties      []string `json:"key_properties"`
	BookmarkProperties []string `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one row.
type RecordMessage struct {
	Type          string         `json:"type"`
	Stream        string         `json:"stream"`
	Record        map[string]any `json:"record"`
	TimeExtracted string         `json:"time_extracted,omitempty"`
}

// StateMessage carries the state to persist.
type StateMessage struct {
	Type  string `json:"type"`
	Value *State `json:"value"`
}

// BatchEncoding describes the files referenced by a BATCH message.
type BatchEncoding struct {
	Format      string `json:"format"`
	Compression string `json:"compression,omitempty"`
}

// BatchMessage points the target at files holding records.
type BatchMessage struct {
	Type     string        `json:"type"`
	Stream   string        `json:"stream"`
	Encoding BatchEncoding `json:"encoding"`
	Manifest []string      `json:"manifest"`
}

func NewSchemaMessage(stream string, schema *Schema, keys, bookmarks []string) *SchemaMessage {
	if keys == nil {
		keys = []string{}
	}
	return &SchemaMessage{Type: TypeSchema, Stream: stream, Schema: schema, KeyProperties: keys, BookmarkProperties: bookmarks}
}

func NewRecordMessage(stream string, record map[string]any, extracted time.Time) *RecordMessage {
	return &RecordMessage{
		Type:          TypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: extracted.UTC().Format(time.RFC3339Nano),
	}
}

func NewStateMessage(state *State) *StateMessage {
	return &StateMessage{Type: TypeState, Value: state.Clone()}
}

func NewBatchMessage(stream string, encoding BatchEncoding, manifest []string) *BatchMessage {
	return &BatchMessage{Type: TypeBatch, Stream: stream, Encoding: encoding, Manifest: manifest}
}

func decodeUseNumber(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
