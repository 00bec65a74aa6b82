// Package testserver stands up a fully wired rfpwatch MCP server over
// in-memory transports, with fault-injection handles for exercising the
// outbox and retry paths end to end.
package testserver

import (
	"context"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/blobstore"
	"github.com/rfpwatch/rfpwatch/internal/domain/rfp"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
	"github.com/rfpwatch/rfpwatch/internal/guard"
	"github.com/rfpwatch/rfpwatch/internal/mcp"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
	"github.com/rfpwatch/rfpwatch/internal/reconcile"
)

// TestServer is a complete stack over an in-memory store.
type TestServer struct {
	Session *sdkmcp.ClientSession
	Store   *blobstore.Memory
	Queue   *outbox.MemoryQueue
	RFPs    *rfp.Service
	Sites   *site.Service
}

// New wires the stack and connects an MCP client session to it.
func New(t *testing.T) *TestServer {
	t.Helper()

	store := blobstore.NewMemory()
	queue := outbox.NewMemoryQueue()

	guardCfg := guard.Config{BackoffBase: time.Millisecond}
	rfpGuard := guard.New[rfp.RFP](store, guardCfg)
	rfpSvc := rfp.NewService(store, batch.New(rfpGuard, rfp.Actions(), batch.Config{}), queue, "", nil)

	siteGuard := guard.New[site.SiteConfig](store, guardCfg)
	siteSvc := site.NewService(store, siteGuard, batch.New(siteGuard, site.Actions(), batch.Config{}), queue, "", nil)

	server := mcp.NewServer(mcp.Config{
		RFPs:   rfpSvc,
		Sites:  siteSvc,
		Outbox: queue,
	})

	serverT, clientT := sdkmcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = server.Run(ctx, serverT) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		cancel()
	})

	return &TestServer{
		Session: session,
		Store:   store,
		Queue:   queue,
		RFPs:    rfpSvc,
		Sites:   siteSvc,
	}
}

// Reconciler builds a reconciler over the same services and queue.
func (ts *TestServer) Reconciler() *reconcile.Reconciler {
	return reconcile.New(reconcile.Config{
		Queue: ts.Queue,
		Appliers: map[string]reconcile.BatchApplier{
			rfp.DocumentKey:  ts.RFPs,
			site.DocumentKey: ts.Sites,
		},
		Sites: ts.Sites,
	})
}
