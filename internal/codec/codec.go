// Package codec provides the stable serialization used for persisted
// entities and signed objects. Output is JSON with lexicographically
// sorted keys and base64-encoded binary fields, so marshaling the same
// value twice yields identical bytes and signatures over marshaled
// objects are reproducible.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current persisted-record schema version.
const SchemaVersion uint8 = 1

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal failed: %w", err)
	}

	// Round-trip through an untyped tree: encoding/json emits map keys in
	// sorted order, which fixes field order regardless of struct layout.
	var tree any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("codec: canonicalization failed: %w", err)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("codec: canonicalization failed: %w", err)
	}
	return out, nil
}

// Unmarshal decodes data produced by Marshal into v.
func Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal failed: %w", err)
	}
	return nil
}

// Record is the self-describing persisted form of an entity: its id, a
// schema version, and the entity's field map.
type Record struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Version uint8           `json:"v"`
	Fields  json.RawMessage `json:"fields"`
}

// EncodeRecord wraps an entity into a versioned Record and marshals it
// deterministically.
func EncodeRecord(id, kind string, v any) ([]byte, error) {
	fields, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Marshal(Record{ID: id, Kind: kind, Version: SchemaVersion, Fields: fields})
}

// DecodeRecord parses a persisted Record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("codec: bad record: %w", err)
	}
	if r.Version == 0 || r.Version > SchemaVersion {
		return Record{}, fmt.Errorf("codec: unsupported schema version %d", r.Version)
	}
	return r, nil
}

// Decode unmarshals the record's field map into v.
func (r Record) Decode(v any) error {
	return Unmarshal(r.Fields, v)
}
