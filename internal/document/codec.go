package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// Codec serializes a collection document to and from the blob payload.
// Decoding is strict about the document envelope: a payload without a
// records field is malformed, not empty. Encoding always refreshes the
// derived metadata fields immediately before marshaling.
type Codec[R Record] struct{}

// Decode parses a payload into a collection document.
func (Codec[R]) Decode(payload []byte) (*Collection[R], error) {
	var envelope struct {
		Metadata Metadata        `json:"metadata"`
		Records  json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if envelope.Records == nil {
		return nil, fmt.Errorf("%w: missing records field", ErrMalformed)
	}

	var records []R
	if err := json.Unmarshal(envelope.Records, &records); err != nil {
		return nil, fmt.Errorf("%w: records: %v", ErrMalformed, err)
	}

	return &Collection[R]{Metadata: envelope.Metadata, Records: records}, nil
}

// Encode marshals the document, stamping last_updated with the supplied
// time and recomputing total_count from the live records. The count is
// never carried over from a previous commit.
func (Codec[R]) Encode(doc *Collection[R], now time.Time) ([]byte, error) {
	doc.Metadata.LastUpdated = now.UTC()
	doc.Metadata.TotalCount = doc.LiveCount()
	if doc.Metadata.Version == "" {
		doc.Metadata.Version = SchemaVersion
	}
	if doc.Records == nil {
		doc.Records = []R{}
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return payload, nil
}
