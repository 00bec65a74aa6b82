package document

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (r testRecord) RecordID() string { return r.ID }
func (r testRecord) Tombstoned() bool { return r.Deleted }

func TestCodecRoundTrip(t *testing.T) {
	codec := Codec[testRecord]{}
	doc := Empty[testRecord]()
	doc.Append(testRecord{ID: "a", Name: "Alpha"})
	doc.Append(testRecord{ID: "b", Deleted: true})

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := codec.Encode(doc, now)
	require.NoError(t, err)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, now, decoded.Metadata.LastUpdated)
	require.Equal(t, 1, decoded.Metadata.TotalCount)
	require.Equal(t, SchemaVersion, decoded.Metadata.Version)
	require.Equal(t, doc.Records, decoded.Records)
}

func TestCodecDecodeMissingRecords(t *testing.T) {
	codec := Codec[testRecord]{}

	_, err := codec.Decode([]byte(`{"metadata":{"version":"1.0"}}`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestCodecDecodeInvalidJSON(t *testing.T) {
	codec := Codec[testRecord]{}

	_, err := codec.Decode([]byte(`{"metadata":`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = codec.Decode([]byte(`{"records":{"not":"an array"}}`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestCodecDecodeEmptyCollection(t *testing.T) {
	codec := Codec[testRecord]{}

	doc, err := codec.Decode([]byte(`{"metadata":{"version":"1.0"},"records":[]}`))
	require.NoError(t, err)
	require.Empty(t, doc.Records)
}

func TestCodecEncodeRecomputesCount(t *testing.T) {
	codec := Codec[testRecord]{}
	doc := &Collection[testRecord]{
		Metadata: Metadata{TotalCount: 99, Version: "1.0"},
		Records:  []testRecord{{ID: "a"}, {ID: "b", Deleted: true}},
	}

	payload, err := codec.Encode(doc, time.Now())
	require.NoError(t, err)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, 1, decoded.Metadata.TotalCount)
}

func TestCodecEncodeGolden(t *testing.T) {
	codec := Codec[testRecord]{}
	doc := Empty[testRecord]()
	doc.Append(testRecord{ID: "a", Name: "Alpha"})
	doc.Append(testRecord{ID: "b", Deleted: true})

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := codec.Encode(doc, now)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encoded_document", payload)
}

func TestCollectionFindAndRemove(t *testing.T) {
	doc := Empty[testRecord]()
	doc.Append(testRecord{ID: "a"})
	doc.Append(testRecord{ID: "b"})
	doc.Append(testRecord{ID: "c"})

	idx, ok := doc.Find("b")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = doc.Find("zzz")
	require.False(t, ok)

	doc.RemoveAt(idx)
	require.Len(t, doc.Records, 2)
	_, ok = doc.Find("b")
	require.False(t, ok)
}
