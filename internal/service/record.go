package service

import (
	"encoding/json"
	"fmt"

	"github.com/keysmith-dev/keysmith-server/internal/codec"
)

// Kinds of persisted entity records.
const (
	recordKindVault  = "vault"
	recordKindOrg    = "org"
	recordKindGroup  = "group"
	recordKindInvite = "invite"
)

// wrapRecord envelopes a validated client payload in the self-describing
// record form before it is written to a Data column. The envelope carries
// the entity id, its kind and the schema version, so stored rows stay
// readable across format changes.
func wrapRecord(id, kind string, payload []byte) ([]byte, error) {
	data, err := codec.EncodeRecord(id, kind, json.RawMessage(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	return data, nil
}

// unwrapRecord validates a stored envelope and returns the inner payload.
// A version the server does not understand, or a kind that does not match
// the column it came from, means the row is unreadable.
func unwrapRecord(data []byte, kind string) ([]byte, error) {
	rec, err := codec.DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
	}
	if rec.Kind != kind {
		return nil, fmt.Errorf("stored record has kind %q, want %q", rec.Kind, kind)
	}
	return rec.Fields, nil
}
