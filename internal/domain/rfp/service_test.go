package rfp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/guard"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

func newTestService(store *blobstore.Memory, queue outbox.Queue) *Service {
	g := guard.New[RFP](store, guard.Config{BackoffBase: time.Millisecond})
	p := batch.New(g, Actions(), batch.Config{})
	return NewService(store, p, queue, "", nil)
}

func seedRFPs(t *testing.T, store *blobstore.Memory, recs ...RFP) {
	t.Helper()
	doc := document.Empty[RFP]()
	for _, r := range recs {
		doc.Append(r)
	}
	codec := document.Codec[RFP]{}
	payload, err := codec.Encode(doc, time.Now())
	require.NoError(t, err)
	store.Seed(DocumentKey, payload)
}

func TestServiceReadMissingDocument(t *testing.T) {
	svc := newTestService(blobstore.NewMemory(), nil)

	doc, err := svc.Read(context.Background())
	require.NoError(t, err)
	require.Empty(t, doc.Records)
	require.Equal(t, document.SchemaVersion, doc.Metadata.Version)
}

func TestServiceReadCorruptDocument(t *testing.T) {
	store := blobstore.NewMemory()
	store.Seed(DocumentKey, []byte(`{"metadata":{}}`))
	svc := newTestService(store, nil)

	_, err := svc.Read(context.Background())
	require.ErrorIs(t, err, document.ErrMalformed)
}

func TestServiceMutateApplies(t *testing.T) {
	store := blobstore.NewMemory()
	seedRFPs(t, store, RFP{ID: "rfp-1", Title: "Road works"})
	svc := newTestService(store, nil)

	res, err := svc.Mutate(context.Background(), []batch.Operation{
		{RecordID: "rfp-1", Action: ActionStar},
	})
	require.NoError(t, err)
	require.False(t, res.Queued)
	require.True(t, res.Batch.Committed)

	doc, err := svc.Read(context.Background())
	require.NoError(t, err)
	require.True(t, doc.Records[0].Starred)
}

func TestServiceMutateQueuesWhenStoreDown(t *testing.T) {
	store := blobstore.NewMemory()
	seedRFPs(t, store, RFP{ID: "rfp-1"})
	queue := outbox.NewMemoryQueue()
	svc := newTestService(store, queue)

	store.SetUnavailable(true)
	ops := []batch.Operation{{RecordID: "rfp-1", Action: ActionIgnore, Reason: "dup"}}
	res, err := svc.Mutate(context.Background(), ops)
	require.NoError(t, err)
	require.True(t, res.Queued)
	require.NotEmpty(t, res.QueueID)

	pending, err := queue.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, outbox.KindBatch, pending[0].Mutation.Kind)
	require.Equal(t, DocumentKey, pending[0].Mutation.DocumentKey)

	var queued []batch.Operation
	require.NoError(t, json.Unmarshal(pending[0].Mutation.Payload, &queued))
	require.Equal(t, ops, queued)
}

func TestServiceMutateWithoutQueueSurfacesUnavailable(t *testing.T) {
	store := blobstore.NewMemory()
	seedRFPs(t, store, RFP{ID: "rfp-1"})
	svc := newTestService(store, nil)

	store.SetUnavailable(true)
	_, err := svc.Mutate(context.Background(), []batch.Operation{{RecordID: "rfp-1", Action: ActionStar}})
	require.ErrorIs(t, err, blobstore.ErrUnavailable)
}

func TestServiceMutateDoesNotQueueStructuralErrors(t *testing.T) {
	store := blobstore.NewMemory()
	seedRFPs(t, store, RFP{ID: "rfp-1"})
	queue := outbox.NewMemoryQueue()
	svc := newTestService(store, queue)

	// An exhausted retry budget is the user's to retry, not the outbox's.
	store.FailCommits(100)
	_, err := svc.Mutate(context.Background(), []batch.Operation{{RecordID: "rfp-1", Action: ActionStar}})
	require.ErrorIs(t, err, guard.ErrConcurrencyExceeded)
	require.Empty(t, queue.All())
}
